package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/edgealpha/artifact-agent/internal/pipeline"
)

type generateFlags struct {
	files    []string
	model    string
	asJSON   bool
	parallel int
}

func newGenerateCmd(f *rootFlags) *cobra.Command {
	gf := &generateFlags{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run generation requests from JSON files",
		Long: `Runs one generation per request file and prints the results.

A request file holds the same JSON body the HTTP API accepts. Use "-" to
read a single request from stdin. Requests carrying an ownerId are saved and
credited; requests without one are generated only.`,
		Example: `  artifact-agent generate -f request.json
  cat request.json | artifact-agent generate -f - --json
  artifact-agent generate -f a.json -f b.json --parallel 2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runGenerate(ctx, f, gf, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringArrayVarP(&gf.files, "file", "f", nil, "Request JSON file (repeatable; \"-\" for stdin)")
	cmd.Flags().StringVar(&gf.model, "model", "", "Model override (<provider_id>/<model_name>)")
	cmd.Flags().BoolVar(&gf.asJSON, "json", false, "Print results as JSON")
	cmd.Flags().IntVar(&gf.parallel, "parallel", 1, "Maximum concurrent generations")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runGenerate(ctx context.Context, f *rootFlags, gf *generateFlags, in io.Reader, out io.Writer, errOut io.Writer) error {
	reqs, err := readRequests(gf.files, in)
	if err != nil {
		return err
	}

	a, err := loadApp(f, errOut)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	if err := a.openStore(); err != nil {
		return err
	}
	activity, err := a.activityDispatcher()
	if err != nil {
		return err
	}
	p, err := a.pipeline(gf.model, activity)
	if err != nil {
		return err
	}

	results := make([]*pipeline.Response, len(reqs))
	errs := make([]error, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, gf.parallel))
	for i, req := range reqs {
		g.Go(func() error {
			results[i], errs[i] = p.Generate(gctx, req)
			return nil
		})
	}
	_ = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), activityDrainTimeout)
	defer cancel()
	if err := activity.Close(drainCtx); err != nil {
		a.log.Warn("activity log drain incomplete", "error", err)
	}

	return reportResults(out, errOut, gf, results, errs)
}

func reportResults(out io.Writer, errOut io.Writer, gf *generateFlags, results []*pipeline.Response, errs []error) error {
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			fmt.Fprintf(errOut, "%s %s: %v\n", errorLabel(), gf.files[i], err)
		}
	}

	if gf.asJSON {
		ok := make([]*pipeline.Response, 0, len(results))
		for _, r := range results {
			if r != nil {
				ok = append(ok, r)
			}
		}
		var v any = ok
		if len(gf.files) == 1 && len(ok) == 1 {
			v = ok[0]
		}
		if err := writeJSONTo(out, v); err != nil {
			return err
		}
	} else {
		for i, r := range results {
			if r == nil {
				continue
			}
			if len(results) > 1 {
				fmt.Fprintln(out, dimLabel("== "+gf.files[i]))
			}
			if err := printResponse(out, r); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d generations failed", failed, len(errs))
	}
	return nil
}

func readRequests(files []string, stdin io.Reader) ([]pipeline.Request, error) {
	if len(files) == 0 {
		return nil, errors.New("no request files")
	}
	reqs := make([]pipeline.Request, 0, len(files))
	sawStdin := false
	for _, name := range files {
		var (
			b   []byte
			err error
		)
		if name == "-" {
			if sawStdin {
				return nil, errors.New("stdin may only be read once")
			}
			sawStdin = true
			b, err = io.ReadAll(stdin)
		} else {
			b, err = os.ReadFile(filepath.Clean(name))
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var req pipeline.Request
		if err := json.Unmarshal(b, &req); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		// Fail fast on malformed requests before any provider is contacted.
		if _, err := req.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
