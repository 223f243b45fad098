// Package pipeline runs the two processing flows: Paso 1 turns a raw
// Prioridades de Pago export into the processed workbook, Paso 2 merges a
// batch into the budget template and loads it into the warehouse.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/prioridades-pago/internal/domain"
	"github.com/dvloznov/prioridades-pago/internal/metrics"
	"github.com/dvloznov/prioridades-pago/internal/table"
	"github.com/dvloznov/prioridades-pago/internal/xlsx"
)

// PipelineStep represents a single step of a processing flow.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// Named is implemented by steps that report their own name to metrics and logs.
type Named interface {
	Name() string
}

// Upload is a workbook handed to a flow.
type Upload struct {
	FileName string
	Data     []byte
	// Sheet selects the input sheet; empty means the first one.
	Sheet string
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Flow   string
	RunID  string
	Now    time.Time
	Upload Upload

	Grid         [][]string
	Sheet        string
	HeaderRow    int
	HeaderMethod table.Method
	Table        table.Table
	Cleaning     table.CleanReport
	Reused       bool

	Rates domain.RateSnapshot
	Areas domain.AreaTable
	Batch *domain.Batch

	Template []byte
	Render   xlsx.RenderResult
	Output   []byte

	ObjectName string
	FileURL    string
	Warehouse  WarehouseResult
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps   []PipelineStep
	metrics *metrics.Metrics
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(m *metrics.Metrics, steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps, metrics: m}
}

// Execute runs all steps in the pipeline sequentially. The returned error
// wraps the failing step's error, so typed errors survive errors.As.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		name := stepName(step)
		start := time.Now()
		err := step.Execute(ctx, state)
		p.metrics.ObserveStep(state.Flow, name, time.Since(start))
		if err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, name, err)
		}
	}
	return nil
}

func stepName(step PipelineStep) string {
	if n, ok := step.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", step)
}

// newPaso1Pipeline: read, clean, fetch inputs, derive, render, persist.
func (s *Service) newPaso1Pipeline() *Pipeline {
	return NewPipeline(s.metrics,
		&ReadWorkbookStep{},
		&CleanTableStep{},
		&FetchInputsStep{Rates: s.rates, Areas: s.areas, Timeout: s.rateTimeout, Metrics: s.metrics},
		&DeriveStep{Metrics: s.metrics},
		&RenderStep{},
		&PersistStep{Storage: s.storage, ClearPrefix: TmpPrefix, Path: paso1ObjectName},
	)
}

// newPaso2Pipeline: load template, read, clean, fetch inputs, derive or
// reuse, merge, persist, load warehouse. The template comes first so a
// missing one fails before any work is done.
func (s *Service) newPaso2Pipeline() *Pipeline {
	return NewPipeline(s.metrics,
		&LoadTemplateStep{Storage: s.storage, Path: s.templatePath},
		&ReadWorkbookStep{},
		&CleanTableStep{DetectProcessed: true},
		&FetchInputsStep{Rates: s.rates, Areas: s.areas, Timeout: s.rateTimeout, Metrics: s.metrics},
		&DeriveStep{Metrics: s.metrics},
		&MergeStep{},
		&PersistStep{Storage: s.storage, Path: paso2ObjectName},
		&WarehouseStep{Loader: s.warehouse, Metrics: s.metrics},
	)
}
