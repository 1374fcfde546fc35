package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

// MetadataFileName is the file the build step writes next to the function app.
const MetadataFileName = "functions.metadata"

// WorkerLanguage is reported as the language of worker-indexed functions.
const WorkerLanguage = "go"

type metadataFile struct {
	Name       string            `json:"name"`
	ScriptFile string            `json:"scriptFile"`
	EntryPoint string            `json:"entryPoint"`
	Language   string            `json:"language"`
	Properties map[string]any    `json:"properties"`
	Bindings   []json.RawMessage `json:"bindings"`
	Retry      *retryFile        `json:"retry"`
}

type retryFile struct {
	Strategy        string `json:"strategy"`
	MaxRetryCount   int32  `json:"maxRetryCount"`
	DelayInterval   string `json:"delayInterval"`
	MinimumInterval string `json:"minimumInterval"`
	MaximumInterval string `json:"maximumInterval"`
}

// ReadFunctionsMetadata reads functions.metadata from dir. A missing file
// yields an empty list. Every function is given a fresh id.
func ReadFunctionsMetadata(dir string) ([]*rpc.RpcFunctionMetadata, error) {
	raw, err := os.ReadFile(filepath.Join(dir, MetadataFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", MetadataFileName, err)
	}
	return ParseFunctionsMetadata(raw, dir)
}

// ParseFunctionsMetadata parses the contents of a functions.metadata file.
// Relative script files are resolved against dir.
func ParseFunctionsMetadata(raw []byte, dir string) ([]*rpc.RpcFunctionMetadata, error) {
	if err := validateFunctionsMetadata(raw); err != nil {
		return nil, err
	}

	var entries []metadataFile
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", MetadataFileName, err)
	}

	out := make([]*rpc.RpcFunctionMetadata, 0, len(entries))
	for _, e := range entries {
		if len(e.Bindings) == 0 {
			return nil, fmt.Errorf("At least one binding must be declared in function `%s`", e.Name)
		}

		meta := &rpc.RpcFunctionMetadata{
			Name:       e.Name,
			Directory:  dir,
			ScriptFile: e.ScriptFile,
			EntryPoint: e.EntryPoint,
			Language:   WorkerLanguage,
			FunctionId: uuid.NewString(),
			Bindings:   make(map[string]*rpc.BindingInfo, len(e.Bindings)),
			Properties: stringProperties(e.Properties),
		}

		for _, rb := range e.Bindings {
			b, err := ParseBinding(rb)
			if err != nil {
				return nil, fmt.Errorf("function %s: %w", e.Name, err)
			}
			meta.RawBindings = append(meta.RawBindings, string(rb))
			meta.Bindings[b.Name()] = &rpc.BindingInfo{
				Type:      b.Type(),
				Direction: rpc.BindingDirection(b.Direction()),
				DataType:  b.DataType().Wire(),
			}
		}

		if e.Retry != nil {
			retry, err := e.Retry.toWire()
			if err != nil {
				return nil, fmt.Errorf("function %s: %w", e.Name, err)
			}
			meta.RetryOptions = retry
		}

		out = append(out, meta)
	}
	return out, nil
}

func (r *retryFile) toWire() (*rpc.RpcRetryOptions, error) {
	opts := &rpc.RpcRetryOptions{MaxRetryCount: r.MaxRetryCount}
	if strings.EqualFold(r.Strategy, "fixedDelay") {
		opts.RetryStrategy = rpc.RetryFixedDelay
	}
	for _, f := range []struct {
		src string
		dst **durationpb.Duration
	}{
		{r.DelayInterval, &opts.DelayInterval},
		{r.MinimumInterval, &opts.MinimumInterval},
		{r.MaximumInterval, &opts.MaximumInterval},
	} {
		if f.src == "" {
			continue
		}
		d, err := ParseInterval(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = durationpb.New(d)
	}
	return opts, nil
}

// ParseInterval accepts Go durations ("10s") and clock intervals
// ("hh:mm:ss" or "d.hh:mm:ss").
func ParseInterval(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var days time.Duration
	clock := s
	if i := strings.Index(s, "."); i > 0 && i < strings.Index(s, ":") {
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q", s)
		}
		days = time.Duration(n) * 24 * time.Hour
		clock = s[i+1:]
	}

	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err := errors.Join(err1, err2, err3); err != nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	return days + time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second)), nil
}

func stringProperties(props map[string]any) map[string]string {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out[k] = string(b)
	}
	return out
}
