// Copyright 2023 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/gorse-io/ncf"

type spanKeyType string

var spanKeyName = spanKeyType(uuid.New().String())

type Status string

const (
	StatusRunning  Status = "Running"
	StatusComplete Status = "Complete"
	StatusFailed   Status = "Failed"
)

// Tracer keeps the root spans of long-running jobs such as training.
type Tracer struct {
	name  string
	spans sync.Map
}

func NewTracer(name string) *Tracer {
	return &Tracer{name: name}
}

// Start creates a root span.
func (t *Tracer) Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	ctx, span := newSpan(ctx, t.name, name, total)
	t.spans.Store(name, span)
	return ctx, span
}

// List returns progress of root spans sorted by start time.
func (t *Tracer) List() []Progress {
	var progress []Progress
	t.spans.Range(func(_, value interface{}) bool {
		progress = append(progress, value.(*Span).Progress())
		return true
	})
	sort.Slice(progress, func(i, j int) bool {
		return progress[i].StartTime.Before(progress[j].StartTime)
	})
	return progress
}

// Span tracks the progress of one job. Every span is mirrored by an
// OpenTelemetry span.
type Span struct {
	mu       sync.Mutex
	tracer   string
	name     string
	status   Status
	total    int
	count    int
	err      error
	start    time.Time
	finish   time.Time
	children sync.Map
	otelSpan trace.Span
}

func newSpan(ctx context.Context, tracer, name string, total int) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, otelSpan := otel.Tracer(instrumentationName).Start(ctx, name,
		trace.WithAttributes(attribute.Int("total", total)))
	span := &Span{
		tracer:   tracer,
		name:     name,
		status:   StatusRunning,
		total:    total,
		start:    time.Now(),
		otelSpan: otelSpan,
	}
	return context.WithValue(ctx, spanKeyName, span), span
}

func (s *Span) Add(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count += n
}

func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusRunning {
		s.status = StatusComplete
		s.count = s.total
		s.finish = time.Now()
		s.otelSpan.SetAttributes(attribute.Int("count", s.count))
		s.otelSpan.End()
	}
}

func (s *Span) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.otelSpan.RecordError(err)
	s.otelSpan.SetStatus(codes.Error, err.Error())
	if s.status == StatusRunning {
		s.finish = time.Now()
		s.otelSpan.End()
	}
	s.status = StatusFailed
}

func (s *Span) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Progress returns a snapshot of the span and its children.
func (s *Span) Progress() Progress {
	s.mu.Lock()
	p := Progress{
		Tracer:     s.tracer,
		Name:       s.name,
		Status:     s.status,
		Count:      s.count,
		Total:      s.total,
		StartTime:  s.start,
		FinishTime: s.finish,
	}
	if s.err != nil {
		p.Error = s.err.Error()
	}
	s.mu.Unlock()
	s.children.Range(func(_, value interface{}) bool {
		p.Children = append(p.Children, value.(*Span).Progress())
		return true
	})
	return p
}

// Start creates a span under the span carried by ctx, or a detached span if
// there is none.
func Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	var tracer string
	parent, ok := spanFromContext(ctx)
	if ok {
		tracer = parent.tracer
	}
	ctx, span := newSpan(ctx, tracer, name, total)
	if ok {
		parent.children.Store(name, span)
	}
	return ctx, span
}

func spanFromContext(ctx context.Context) (*Span, bool) {
	if ctx == nil {
		return nil, false
	}
	span, ok := ctx.Value(spanKeyName).(*Span)
	return span, ok
}

type Progress struct {
	Tracer     string
	Name       string
	Status     Status
	Error      string
	Count      int
	Total      int
	StartTime  time.Time
	FinishTime time.Time
	Children   []Progress
}
