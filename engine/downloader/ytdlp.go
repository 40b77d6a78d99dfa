package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/lrstanley/go-ytdlp"
)

// Invocation is one run of the fetch tool.
type Invocation struct {
	URL            string
	OutputTemplate string
	Format         engine.Format
	// Args holds the network and post-processing flags.
	Args       []string
	OnProgress func(downloaded, total int64, eta time.Duration)
}

// Runner executes the fetch tool.
type Runner func(ctx context.Context, inv Invocation) error

// YtDlpOptions configures the primary strategy.
type YtDlpOptions struct {
	Executable string
	FFmpegPath string
	Proxy      string
	// TempRoot is the shared parent of the per-task working directories.
	TempRoot            string
	SocketTimeout       int
	ConcurrentFragments int
	FFmpegThreads       int
	// HardwareAccel is one of none, cuda, qsv, videotoolbox or amf.
	HardwareAccel string
	Searcher      Searcher
	Validator     *Validator
	Logger        engine.Logger
}

// YtDlp fetches with yt-dlp and validates the result in-process.
type YtDlp struct {
	opts    YtDlpOptions
	run     Runner
	tracker *tracker
}

var ytdlpFormats = []engine.Format{
	engine.FormatMP3, engine.FormatM4A, engine.FormatFLAC, engine.FormatWAV,
	engine.FormatOGG, engine.FormatWebM, engine.FormatOpus,
}

// NewYtDlp creates the primary strategy.
func NewYtDlp(opts YtDlpOptions) *YtDlp {
	if opts.TempRoot == "" {
		opts.TempRoot = filepath.Join(os.TempDir(), "trackfetch")
	}
	if opts.SocketTimeout <= 0 {
		opts.SocketTimeout = 15
	}
	if opts.ConcurrentFragments <= 0 {
		opts.ConcurrentFragments = 4
	}
	if opts.FFmpegThreads <= 0 {
		opts.FFmpegThreads = 4
	}
	if opts.Validator == nil {
		opts.Validator = NewValidator(DefaultLimits)
	}
	y := &YtDlp{opts: opts, tracker: newTracker()}
	y.run = y.runTool
	return y
}

func (y *YtDlp) Name() string { return "ytdlp" }

func (y *YtDlp) SupportsFormat(format engine.Format) bool {
	for _, f := range ytdlpFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Fetch resolves, downloads, validates and moves one track.
func (y *YtDlp) Fetch(ctx context.Context, job *Job, progress ProgressFunc) (*Result, error) {
	if job == nil || job.DestPath == "" {
		return nil, errors.New("job destination missing")
	}
	run := y.tracker.start(job.ID)
	defer y.tracker.finish(run)
	report := func(phase string, pct float64) {
		y.tracker.report(run, progress, Progress{TaskID: job.ID, Status: phase, Progress: pct})
	}

	source := strings.TrimSpace(job.Track.URL)
	if source == "" {
		report(PhaseSearching, 5)
		resolved, err := y.resolve(ctx, job.Track)
		if err != nil {
			return nil, err
		}
		source = resolved
	}

	tmpDir := filepath.Join(y.opts.TempRoot, fmt.Sprintf("temp_%d_%s_%s", time.Now().UnixNano(), job.ID, uuid.NewString()))
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil && y.opts.Logger != nil {
			y.opts.Logger.Warn("temp cleanup failed", "dir", tmpDir, "error", err)
		}
	}()

	format := job.Track.Format
	if format == "" {
		format = engine.FormatMP3
	}
	base := fmt.Sprintf("audio_%s_%s", job.ID, uuid.NewString())
	inv := Invocation{
		URL:            source,
		OutputTemplate: filepath.Join(tmpDir, base+".%(ext)s"),
		Format:         format,
		Args:           y.toolArgs(format, job.Track.Quality),
		OnProgress: func(downloaded, total int64, eta time.Duration) {
			pct := 10.0
			if total > 0 {
				pct = 10 + 70*float64(downloaded)/float64(total)
			}
			y.tracker.report(run, progress, Progress{
				TaskID:          job.ID,
				Status:          PhaseDownloading,
				Progress:        pct,
				ETA:             eta,
				DownloadedBytes: downloaded,
				TotalBytes:      total,
			})
		},
	}

	report(PhaseDownloading, 10)
	if y.opts.Logger != nil {
		y.opts.Logger.Info("starting fetch", "task", job.ID, "url", source, "format", format)
	}
	if err := y.run(ctx, inv); err != nil {
		return nil, err
	}

	produced, err := findOutput(tmpDir, format)
	if err != nil {
		return nil, err
	}

	report(PhaseValidating, 85)
	size, duration, err := y.opts.Validator.Validate(produced, format)
	if err != nil {
		return nil, err
	}

	if y.tracker.cancelled(run) {
		return nil, fmt.Errorf("%w: %s", ErrCancelled, job.ID)
	}
	report(PhaseMoving, 95)
	if err := MoveWithBackoff(ctx, produced, job.DestPath); err != nil {
		return nil, err
	}

	report(PhaseCompleted, 100)
	if y.opts.Logger != nil {
		y.opts.Logger.Info("fetch complete", "task", job.ID, "path", job.DestPath, "size", humanize.IBytes(uint64(size)))
	}
	return &Result{Path: job.DestPath, Size: size, Duration: duration, SourceURL: source}, nil
}

func (y *YtDlp) resolve(ctx context.Context, track engine.TrackRef) (string, error) {
	if y.opts.Searcher == nil {
		return "", fmt.Errorf("%w: no searcher configured", ErrNoResults)
	}
	query := track.Query()
	results, err := y.opts.Searcher.Search(ctx, query, 1)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoResults, query)
	}
	return results[0].URL, nil
}

// toolArgs returns the network and ffmpeg flags passed after the builder flags.
func (y *YtDlp) toolArgs(format engine.Format, quality engine.Quality) []string {
	args := []string{
		"--extractor-retries", "1",
		"--fragment-retries", "1",
		"--socket-timeout", strconv.Itoa(y.opts.SocketTimeout),
		"--retries", "1",
		"--concurrent-fragments", strconv.Itoa(y.opts.ConcurrentFragments),
	}
	// -hwaccel is an input option, so it goes before ffmpeg's -i.
	if hw := hwaccelArgs(y.opts.HardwareAccel); hw != "" {
		args = append(args, "--postprocessor-args", "ffmpeg_i:"+hw)
	}
	return append(args, "--postprocessor-args", "ffmpeg:"+postprocessorArgs(format, quality, y.opts.FFmpegThreads))
}

// postprocessorArgs returns ffmpeg's output-side codec and thread flags.
func postprocessorArgs(format engine.Format, quality engine.Quality, threads int) string {
	var args []string
	switch {
	case format.IsLossless():
	case format == engine.FormatOGG:
		args = append(args, "-c:a libvorbis", "-q:a "+strconv.Itoa(vorbisQuality(quality)))
	default:
		args = append(args, "-c:a "+format.Codec(), fmt.Sprintf("-b:a %dk", quality.Bitrate()))
	}
	args = append(args, "-threads "+strconv.Itoa(threads))
	return strings.Join(args, " ")
}

func vorbisQuality(q engine.Quality) int {
	switch q {
	case engine.QualityLow:
		return 3
	case engine.QualityMedium:
		return 5
	case engine.QualityBest:
		return 9
	default:
		return 7
	}
}

func hwaccelArgs(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "cuda", "nvenc":
		return "-hwaccel cuda"
	case "qsv":
		return "-hwaccel qsv"
	case "videotoolbox":
		return "-hwaccel videotoolbox"
	default:
		// amf has no decode-side hwaccel flag
		return ""
	}
}

func (y *YtDlp) runTool(ctx context.Context, inv Invocation) error {
	cmd := ytdlp.New().
		ExtractAudio().
		AudioFormat(inv.Format.String()).
		AudioQuality("best").
		Output(inv.OutputTemplate).
		NoPlaylist().
		NoWarnings().
		IgnoreErrors().
		NoCheckCertificates()
	if y.opts.Executable != "" {
		cmd.SetExecutable(y.opts.Executable)
	}
	if y.opts.FFmpegPath != "" {
		cmd.FFmpegLocation(filepath.Dir(y.opts.FFmpegPath))
	}
	if y.opts.Proxy != "" {
		cmd.Proxy(y.opts.Proxy)
	}
	if inv.OnProgress != nil {
		cmd.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
			inv.OnProgress(int64(update.DownloadedBytes), int64(update.TotalBytes), update.ETA())
		})
	}

	args := append(append([]string(nil), inv.Args...), inv.URL)
	res, err := cmd.Run(ctx, args...)
	if err != nil {
		return toolError(res, err)
	}
	return nil
}

// toolError turns a failed run into an error carrying the tool's stderr.
func toolError(res *ytdlp.Result, err error) error {
	if errors.Is(err, exec.ErrNotFound) || strings.Contains(err.Error(), "executable file not found") {
		return fmt.Errorf("%w: %v", ErrToolMissing, err)
	}
	if res != nil {
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			return fmt.Errorf("yt-dlp failed: %s", stderr)
		}
	}
	return fmt.Errorf("yt-dlp failed: %w", err)
}

// findOutput returns the produced file, preferring the expected extension.
func findOutput(dir string, format engine.Format) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read temp dir: %w", err)
	}
	var fallback string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(entry.Name())), ".")
		if ext == format.String() {
			return filepath.Join(dir, entry.Name()), nil
		}
		if fallback == "" {
			if _, err := engine.ParseFormat(ext); err == nil {
				fallback = filepath.Join(dir, entry.Name())
			}
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", errors.New("no audio file found after download")
}

func (y *YtDlp) Pause(id string) error {
	return y.tracker.setPaused(id, true)
}

func (y *YtDlp) Resume(id string) error {
	return y.tracker.setPaused(id, false)
}

func (y *YtDlp) Cancel(id string) error {
	return y.tracker.cancel(id)
}

func (y *YtDlp) Progress(id string) (Progress, error) {
	return y.tracker.get(id)
}
