package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/reconcile"
	"github.com/robert-malhotra/s1bursts/internal/resolver"
	"github.com/robert-malhotra/s1bursts/internal/safe"
	"github.com/robert-malhotra/s1bursts/internal/sensor"
)

type reconcileOptions struct {
	filterFlags
	minIoU float64
}

func newReconcileCommand(a *app) *cobra.Command {
	opts := &reconcileOptions{}

	cmd := &cobra.Command{
		Use:   "reconcile <product>...",
		Short: "Check the annotation and sensor model bursts agree",
		Long: `Build every burst twice, once from the annotation alone and once through
the sensor model, and compare the records field by field. Prints one line
per burst and fails when any burst does not reconcile.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.reconcile(cmd, args, opts)
		},
	}

	opts.bind(cmd)
	cmd.Flags().Float64Var(&opts.minIoU, "min-iou", -1, "smallest accepted footprint overlap (default from BURST_MIN_IOU)")
	return cmd
}

func (a *app) reconcile(cmd *cobra.Command, args []string, opts *reconcileOptions) error {
	filter, err := opts.filter()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	locations, err := locateAll(ctx, p, args)
	if err != nil {
		return err
	}

	r := reconcile.New()
	r.Tolerances.Float = a.cfg.Burst.FloatTolerance
	r.Tolerances.Polynomial = a.cfg.Burst.FloatTolerance
	r.Tolerances.MinIoU = a.cfg.Burst.MinIoU
	if opts.minIoU >= 0 {
		r.Tolerances.MinIoU = opts.minIoU
	}

	options := burst.Options{EdgeLineMargin: a.cfg.Burst.EdgeLineMargin}
	annotation := burst.AnnotationBuilder{Options: options}
	model := sensor.Builder{Options: options}

	w := cmd.OutOrStdout()
	var checked, failed int
	for _, loc := range locations {
		res, err := p.Resolver.Resolve(ctx, loc, filter)
		if err != nil {
			return err
		}
		for _, sw := range res.Product.Swaths() {
			if !selected(filter, sw) {
				continue
			}
			for i := range sw.Bursts {
				checked++
				status := "ok"
				if err := r.Check(sw, i, annotation, model); err != nil {
					failed++
					status = err.Error()
				}
				fmt.Fprintf(w, "%s %s %s burst %d: %s\n", res.Product.Name, sw.Name, sw.Polarization, i, status)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d bursts: %w", failed, checked, reconcile.ErrReconciliationMismatch)
	}
	if checked == 0 {
		return errors.New("no swath matches the selection")
	}
	return nil
}

func selected(f resolver.Filter, sw *safe.Swath) bool {
	if len(f.Polarizations) > 0 && !slices.ContainsFunc(f.Polarizations, func(p string) bool {
		return strings.EqualFold(p, sw.Polarization)
	}) {
		return false
	}
	return len(f.Swaths) == 0 || slices.Contains(f.Swaths, sw.Index)
}
