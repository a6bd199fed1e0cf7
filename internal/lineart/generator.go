package lineart

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/gemini"
)

// Client is the narrow provider surface the generator drives.
type Client interface {
	GenerateImage(ctx context.Context, req gemini.GenerateRequest) (*gemini.GenerateResult, error)
	Model() string
}

// Options configures a Generator.
type Options struct {
	Client       Client
	Logger       *infra.Logger
	BackoffBase  time.Duration
	MaxAttempts  int
	CostPerImage float64
}

// Generator turns structured job parameters into a generated line-art image,
// hiding provider retry and error semantics from the worker.
type Generator struct {
	client       Client
	logger       infra.Logger
	backoffBase  time.Duration
	maxAttempts  int
	costPerImage float64
}

// Request is the normalized generation input resolved by the worker.
type Request struct {
	Params domain.JobParams
	// SourceImage conditions an original, image-based job.
	SourceImage []byte
	// ParentImage conditions an edit job; ParentInstruction is the prompt
	// that produced it, when known.
	ParentImage       []byte
	ParentInstruction string
}

// Result carries the generated image plus call metadata.
type Result struct {
	Image   []byte
	Width   int
	Height  int
	Model   string
	Cost    float64
	Latency time.Duration
}

// NewGenerator wires a Generator with defaults suitable for production.
func NewGenerator(opts Options) *Generator {
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	backoff := opts.BackoffBase
	if backoff <= 0 {
		backoff = time.Second
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &Generator{
		client:       opts.Client,
		logger:       logger,
		backoffBase:  backoff,
		maxAttempts:  attempts,
		costPerImage: opts.CostPerImage,
	}
}

// CostPerImage returns the provider's per-image price in USD.
func (g *Generator) CostPerImage() float64 {
	return g.costPerImage
}

// Generate builds the prompt, preprocesses any conditioning image, and calls
// the provider with bounded exponential-backoff retries. Failures come back
// as *GenerationError; the returned error is terminal for the attempt chain.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	var prompt string
	var conditioning []byte
	if req.Params.EditParentID != "" {
		prompt = EditPromptFor(req.Params, req.ParentInstruction)
		conditioning = req.ParentImage
	} else {
		prompt = PromptFor(req.Params)
		conditioning = req.SourceImage
	}

	if len(conditioning) > 0 {
		prepared, _, _, err := Preprocess(conditioning)
		if err != nil {
			return nil, &GenerationError{Kind: KindInvalidInput, Err: err}
		}
		conditioning = prepared
	}

	apiReq := gemini.GenerateRequest{
		Prompt:    prompt,
		Image:     conditioning,
		ImageMIME: "image/png",
	}

	var lastErr *GenerationError
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := g.backoffBase << (attempt - 1)
			g.logger.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("lineart: retrying generation")
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, &GenerationError{Kind: KindTemporary, Err: err}
			}
		}

		result, err := g.client.GenerateImage(ctx, apiReq)
		if err == nil {
			w, h := imageDims(result.Data)
			return &Result{
				Image:   result.Data,
				Width:   w,
				Height:  h,
				Model:   g.client.Model(),
				Cost:    g.costPerImage,
				Latency: time.Since(start),
			}, nil
		}

		lastErr = Classify(err)
		if !lastErr.Retryable() {
			g.logger.Warn().
				Str("kind", string(lastErr.Kind)).
				Err(err).
				Msg("lineart: generation failed, not retryable")
			return nil, lastErr
		}
		g.logger.Warn().
			Str("kind", string(lastErr.Kind)).
			Int("attempt", attempt+1).
			Err(err).
			Msg("lineart: generation attempt failed")
	}

	return nil, fmt.Errorf("generation failed after %d attempts: %w", g.maxAttempts, lastErr)
}

// imageDims best-effort decodes the payload's dimensions; unknown formats
// report zero without failing the generation.
func imageDims(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
