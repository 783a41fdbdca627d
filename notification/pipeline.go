package notification

import (
	"context"
	"fmt"

	"github.com/zllovesuki/rtdn/response"
)

type PipelineOptions struct {
	Decoder   *Decoder
	Guard     *Guard
	Processor *Processor
}

// Pipeline runs a raw delivery through decoding, duplicate suppression and processing
type Pipeline struct {
	PipelineOptions
}

func NewPipeline(option PipelineOptions) (*Pipeline, error) {
	if option.Decoder == nil {
		return nil, fmt.Errorf("nil Decoder is invalid")
	}
	if option.Guard == nil {
		return nil, fmt.Errorf("nil Guard is invalid")
	}
	if option.Processor == nil {
		return nil, fmt.Errorf("nil Processor is invalid")
	}
	return &Pipeline{
		PipelineOptions: option,
	}, nil
}

// Handle decodes body and processes it once per message id. Undecodable bodies FAIL
func (p *Pipeline) Handle(ctx context.Context, body []byte) (response.Result, error) {
	env := p.Decoder.Decode(body)
	if env == nil {
		return response.FAIL, nil
	}
	return p.HandleEnvelope(ctx, env)
}

func (p *Pipeline) HandleEnvelope(ctx context.Context, env *Envelope) (response.Result, error) {
	return p.Guard.Run(ctx, env.MessageID, func(ctx context.Context) (response.Result, error) {
		return p.Processor.Process(ctx, env)
	})
}
