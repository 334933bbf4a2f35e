// Package embed turns audio files into fixed-size embedding vectors.
package embed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	tflite "github.com/tphakala/go-tflite"

	"github.com/text2tracks/backend/internal/constants"
	"github.com/text2tracks/backend/internal/logger"
)

// Embedder generates a vector embedding for an audio file.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedFile decodes the audio file at path and returns its embedding.
	EmbedFile(ctx context.Context, path string) ([]float32, error)

	// Dimension returns the length of the vectors EmbedFile produces.
	Dimension() int
}

// Clap runs a CLAP audio encoder exported as a TensorFlow Lite model.
// The interpreter is not reentrant, so inference is serialized.
type Clap struct {
	model       *tflite.Model
	interpreter *tflite.Interpreter
	inputSize   int
	dimension   int
	log         *logger.Logger
	mu          sync.Mutex
}

// NewClap loads the TensorFlow Lite model at modelPath and prepares an
// interpreter for it. The model must accept a mono 48 kHz sample window
// and produce vectors of the configured embedding dimension.
func NewClap(modelPath string, log *logger.Logger) (*Clap, error) {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, errors.New("cannot load TensorFlow Lite model")
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(runtime.NumCPU())
	options.SetErrorReporter(func(msg string, userData any) {
		log.Error("tflite error", "message", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, errors.New("cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("tensor allocation failed: %v", status)
	}

	c := &Clap{
		model:       model,
		interpreter: interpreter,
		log:         log,
	}
	if err := c.validateTensors(); err != nil {
		c.Close()
		return nil, err
	}

	log.Info("CLAP model initialized",
		"path", modelPath,
		"input_samples", c.inputSize,
		"dimension", c.dimension,
		"threads", runtime.NumCPU())

	return c, nil
}

// validateTensors checks that the loaded model's tensor shapes match what
// the rest of the pipeline assumes.
func (c *Clap) validateTensors() error {
	input := c.interpreter.GetInputTensor(0)
	if input == nil {
		return errors.New("cannot get input tensor from model")
	}
	c.inputSize = input.Dim(input.NumDims() - 1)
	if c.inputSize != constants.ClapWindowSamples {
		return fmt.Errorf("model input size mismatch: model expects %d samples, pipeline produces %d",
			c.inputSize, constants.ClapWindowSamples)
	}

	output := c.interpreter.GetOutputTensor(0)
	if output == nil {
		return errors.New("cannot get output tensor from model")
	}
	c.dimension = output.Dim(output.NumDims() - 1)
	if c.dimension != constants.EmbeddingDim {
		return fmt.Errorf("model output size mismatch: model produces %d values, expected %d",
			c.dimension, constants.EmbeddingDim)
	}

	return nil
}

// EmbedFile decodes, resamples and windows the audio file at path, then
// runs it through the model.
func (c *Clap) EmbedFile(ctx context.Context, path string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples, rate, err := decodeAudioFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	if len(samples) == 0 {
		return nil, errors.New("audio file contains no samples")
	}

	samples = resampleAudio(samples, rate, constants.ClapSampleRate)
	samples = windowSamples(samples, constants.ClapWindowSamples)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	input := c.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, errors.New("cannot get input tensor")
	}
	copy(input.Float32s(), samples)

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	output := c.interpreter.GetOutputTensor(0)
	if output == nil {
		return nil, errors.New("cannot get output tensor")
	}

	vector := make([]float32, c.dimension)
	copy(vector, output.Float32s())
	return vector, nil
}

// Dimension returns the embedding length the model produces.
func (c *Clap) Dimension() int {
	return c.dimension
}

// Close releases the interpreter and model resources.
func (c *Clap) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
}
