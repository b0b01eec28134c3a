package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tech-enerzal/enerzal/providers"
	"github.com/tech-enerzal/enerzal/types"
)

// generate opens the streaming generation call with the (possibly augmented)
// conversation and relays its chunks to out.
//
// Per line of the backend stream: decoded envelopes whose role is assistant
// or user are relayed as their content terminated by a line break; other
// roles are silently dropped. Lines that did not parse as JSON arrive as raw
// chunks and are relayed verbatim, also line-break terminated. The relay
// stops when the backend closes the stream or the caller stops consuming.
func (p *Pipeline) generate(ctx context.Context, req *Request, conversation types.Conversation, out chan<- string, logger *zap.Logger) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.stream")
	defer span.End()
	start := time.Now()
	defer p.recordStage("generate", start)

	opts := req.Options
	if opts == nil {
		opts = &Options{}
	}
	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	numPredict := DefaultNumPredict
	if opts.NumPredict != nil {
		numPredict = *opts.NumPredict
	}
	numCtx := DefaultNumCtx
	if opts.NumCtx != nil {
		numCtx = *opts.NumCtx
	}

	model := req.Model
	if model == "" {
		model = DefaultGenerateModel
	}

	stream, err := p.generator.Stream(ctx, &providers.ChatRequest{
		Model:    model,
		Messages: conversation,
		Options: providers.ChatOptions{
			Temperature: temperature,
			NumPredict:  numPredict,
			NumCtx:      numCtx,
		},
		KeepAlive: req.KeepAlive,
	})
	if err != nil {
		return types.NewError(types.ErrGenerationTransport, err.Error()).WithCause(err)
	}

	for chunk := range stream {
		switch {
		case chunk.Err != nil:
			return chunk.Err

		case chunk.IsRaw():
			if p.metrics != nil {
				p.metrics.RecordChunk("raw")
			}
			if !p.send(ctx, out, chunk.Raw+"\n") {
				return nil
			}

		case chunk.Message.Role == types.RoleAssistant || chunk.Message.Role == types.RoleUser:
			if p.metrics != nil {
				p.metrics.RecordChunk("message")
			}
			if !p.send(ctx, out, chunk.Message.Content+"\n") {
				return nil
			}

		default:
			logger.Debug("ignored stream message",
				zap.String("role", string(chunk.Message.Role)))
		}
	}
	return nil
}
