package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/nifkit/pkg/codec"
	"github.com/ssargent/nifkit/pkg/graph"
	"github.com/ssargent/nifkit/pkg/journal"
	"github.com/ssargent/nifkit/pkg/nif"
	"github.com/ssargent/nifkit/pkg/storage"
)

// Status is the outcome of one file.
type Status string

const (
	StatusConverted Status = "converted"
	// StatusUnchanged means the output matched the input and OnlyModified
	// suppressed the write.
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Options control a batch run. The zero value converts every file in place
// at its own version, one at a time, stopping at the first error.
type Options struct {
	// Target is the output version. Nil keeps each file's version.
	Target    *nif.FormatVersion
	Transform graph.Transform

	// OutputDir receives outputs at their path relative to BaseDir. Empty
	// means overwrite inputs in place.
	OutputDir string
	BaseDir   string
	// Rename matches are removed from output file names.
	Rename *regexp.Regexp
	// Filter skips paths it does not match.
	Filter *regexp.Regexp

	OnlyModified  bool
	SkipErrors    bool
	SkipUnchanged bool
	Workers       int

	// Backup receives the original bytes before an in-place overwrite.
	Backup  *storage.BackupStore
	Journal *journal.Writer
}

// Result is the outcome of one input file.
type Result struct {
	Path     string
	Output   string
	Status   Status
	Reason   string
	Err      error
	From     nif.FormatVersion
	To       nif.FormatVersion
	Records  int
	BackupID string
	Elapsed  time.Duration
	// InputCRC and OutputCRC are journal.Checksum values.
	InputCRC  uint32
	OutputCRC uint32
}

// Report lists results in input order. Files never started because the
// run aborted have no result.
type Report struct {
	Results []Result
	Elapsed time.Duration
}

// Count returns the number of results with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Failed returns the failed results.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Runner converts lists of files with a shared codec.
type Runner struct {
	codec *codec.GraphCodec
	opts  Options
	log   *zap.Logger
}

// New returns a runner. A nil logger discards output.
func New(c *codec.GraphCodec, opts Options, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{codec: c, opts: opts, log: log}
}

// Run processes paths. Unless SkipErrors is set the first failure cancels
// the remaining files and is returned alongside the partial report.
func (r *Runner) Run(ctx context.Context, paths []string) (*Report, error) {
	start := time.Now()
	last, err := r.history()
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := r.process(path, last)
			results[i] = &res
			r.record(res)
			if res.Err != nil && !r.opts.SkipErrors {
				return errors.Wrapf(res.Err, "%s", path)
			}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	report := &Report{Elapsed: time.Since(start)}
	for _, res := range results {
		if res != nil {
			report.Results = append(report.Results, *res)
		}
	}
	if r.opts.Journal != nil {
		if err := r.opts.Journal.Sync(); err != nil && runErr == nil {
			runErr = err
		}
	}
	r.log.Info("batch finished",
		zap.Int("files", len(paths)),
		zap.Int("converted", report.Count(StatusConverted)),
		zap.Int("unchanged", report.Count(StatusUnchanged)),
		zap.Int("skipped", report.Count(StatusSkipped)),
		zap.Int("failed", report.Count(StatusFailed)),
		zap.Duration("elapsed", report.Elapsed))
	return report, runErr
}

func (r *Runner) history() (map[string]journal.Entry, error) {
	if !r.opts.SkipUnchanged || r.opts.Journal == nil {
		return nil, nil
	}
	if err := r.opts.Journal.Sync(); err != nil {
		return nil, err
	}
	last, err := journal.LastByPath(r.opts.Journal.Path())
	if err != nil && !errors.Is(err, journal.ErrCorruption) {
		return nil, err
	}
	if err != nil {
		r.log.Warn("journal has a torn tail, using entries before it", zap.Error(err))
	}
	return last, nil
}

func (r *Runner) process(path string, last map[string]journal.Entry) (res Result) {
	start := time.Now()
	res = Result{Path: path}
	defer func() { res.Elapsed = time.Since(start) }()

	if r.opts.Filter != nil && !r.opts.Filter.MatchString(path) {
		res.Status, res.Reason = StatusSkipped, "filtered"
		return res
	}
	res.Output = r.OutputPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return failed(res, errors.Wrap(err, "read input"))
	}
	res.InputCRC = journal.Checksum(data)
	if prev, ok := last[path]; ok && unchangedSince(prev, res.InputCRC) {
		res.Status, res.Reason = StatusSkipped, "unchanged since last run"
		res.OutputCRC = prev.OutputCRC
		return res
	}

	conv, err := r.codec.Convert(data, r.opts.Target, r.opts.Transform)
	if err != nil {
		return failed(res, err)
	}
	res.From, res.To, res.Records = conv.From, conv.To, conv.Graph.Len()

	res.OutputCRC = journal.Checksum(conv.Output)

	if r.opts.OnlyModified && bytes.Equal(conv.Output, data) {
		res.Status = StatusUnchanged
		return res
	}

	if res.Output == path && r.opts.Backup != nil {
		abs, err := filepath.Abs(path)
		if err != nil {
			return failed(res, errors.Wrap(err, "backup"))
		}
		b, err := r.opts.Backup.Save(abs, conv.From.Describe(), data)
		if err != nil {
			return failed(res, errors.Wrap(err, "backup"))
		}
		res.BackupID = b.ID.String()
	}
	if err := writeFile(res.Output, conv.Output); err != nil {
		return failed(res, err)
	}
	res.Status = StatusConverted
	return res
}

// unchangedSince reports whether a file with checksum crc is what the previous
// successful run left behind, either as its output or as an input it already
// converted.
func unchangedSince(prev journal.Entry, crc uint32) bool {
	if prev.Output == prev.Path {
		return prev.OutputCRC == crc
	}
	if prev.InputCRC != crc {
		return false
	}
	_, err := os.Stat(prev.Output)
	return err == nil
}

func failed(res Result, err error) Result {
	res.Status, res.Err = StatusFailed, err
	return res
}

// OutputPath returns where the output for path is written.
func (r *Runner) OutputPath(path string) string {
	out := path
	if r.opts.OutputDir != "" {
		rel := filepath.Base(path)
		if r.opts.BaseDir != "" {
			if p, err := filepath.Rel(r.opts.BaseDir, path); err == nil && !strings.HasPrefix(p, "..") {
				rel = p
			}
		}
		out = filepath.Join(r.opts.OutputDir, rel)
	}
	if r.opts.Rename != nil {
		name := r.opts.Rename.ReplaceAllString(filepath.Base(out), "")
		out = filepath.Join(filepath.Dir(out), name)
	}
	return out
}

// writeFile replaces path through a temporary file in the same directory.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write output")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close output")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "replace output")
}

func (r *Runner) record(res Result) {
	fields := []zap.Field{
		zap.String("path", res.Path),
		zap.String("status", string(res.Status)),
		zap.Duration("elapsed", res.Elapsed),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
		r.log.Warn("file failed", fields...)
	} else {
		r.log.Debug("file done", fields...)
	}

	if r.opts.Journal == nil {
		return
	}
	e := journal.Entry{
		Path:      res.Path,
		Output:    res.Output,
		Status:    string(res.Status),
		Records:   res.Records,
		InputCRC:  res.InputCRC,
		OutputCRC: res.OutputCRC,
		BackupID:  res.BackupID,
		Time:      time.Now().UTC(),
	}
	if res.To != (nif.FormatVersion{}) {
		e.From, e.To = res.From.Describe(), res.To.Describe()
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	if _, err := r.opts.Journal.Append(e); err != nil {
		r.log.Error("journal append failed", zap.String("path", res.Path), zap.Error(err))
	}
}
