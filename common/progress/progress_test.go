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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type ProgressTestSuite struct {
	suite.Suite
	tracer   *Tracer
	recorder *tracetest.SpanRecorder
}

func (suite *ProgressTestSuite) SetupTest() {
	suite.tracer = NewTracer("test")
	suite.recorder = tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(suite.recorder)))
}

func (suite *ProgressTestSuite) TestLeafProgress() {
	_, span := suite.tracer.Start(context.Background(), "root", 100)
	progresList := suite.tracer.List()
	suite.Equal(1, len(progresList))
	suite.Equal("test", progresList[0].Tracer)
	suite.Equal("root", progresList[0].Name)
	suite.Equal(StatusRunning, progresList[0].Status)
	suite.Empty(progresList[0].Error)
	suite.Equal(100, progresList[0].Total)
	suite.Empty(progresList[0].Count)
	suite.LessOrEqual(progresList[0].StartTime, time.Now())

	span.Add(10)
	progresList = suite.tracer.List()
	suite.Equal(10, progresList[0].Count)
	suite.Equal(10, span.Count())

	span.End()
	progresList = suite.tracer.List()
	suite.Equal(StatusComplete, progresList[0].Status)
	suite.Equal(100, progresList[0].Count)
	suite.False(progresList[0].FinishTime.Before(progresList[0].StartTime))
	suite.Len(suite.recorder.Ended(), 1)
	suite.Equal("root", suite.recorder.Ended()[0].Name())

	span.Fail(errors.New("some error"))
	progresList = suite.tracer.List()
	suite.Equal(StatusFailed, progresList[0].Status)
	suite.Equal("some error", progresList[0].Error)
}

func (suite *ProgressTestSuite) TestMultiLevelProgress() {
	newCtx, rootSpan := suite.tracer.Start(context.Background(), "root", 100)
	rootSpan.Add(10)
	_, childSpan := Start(newCtx, "child", 8)
	childSpan.Add(2)
	progresList := suite.tracer.List()
	suite.Equal(1, len(progresList))
	suite.Equal(10, progresList[0].Count)
	suite.Len(progresList[0].Children, 1)
	suite.Equal("child", progresList[0].Children[0].Name)
	suite.Equal("test", progresList[0].Children[0].Tracer)
	suite.Equal(2, progresList[0].Children[0].Count)

	childSpan.Fail(errors.New("child error"))
	rootSpan.End()
	ended := suite.recorder.Ended()
	suite.Len(ended, 2)
	suite.Equal("child", ended[0].Name())
	suite.Equal(codes.Error, ended[0].Status().Code)
	suite.Equal(ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
}

func (suite *ProgressTestSuite) TestDetachedSpan() {
	_, span := Start(context.Background(), "detached", 3)
	span.Add(1)
	suite.Equal(1, span.Count())
	suite.Empty(suite.tracer.List())
	span.End()
	suite.Equal(StatusComplete, span.Progress().Status)
}

func TestProgress(t *testing.T) {
	suite.Run(t, new(ProgressTestSuite))
}
