package embed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/liuran001/TrackFetch-Go/engine"
)

// ErrNotConfigured is returned when no processor script is set.
var ErrNotConfigured = errors.New("audio processor not configured")

// CollaboratorError is a failure reported by the processor itself.
type CollaboratorError struct {
	Action  string
	Message string
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("processor %s: %s", e.Action, e.Message)
}

// CoverArt carries artwork bytes or a URL for the processor to fetch.
type CoverArt struct {
	Data     []byte `json:"data,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Request is one JSON message sent to the processor on stdin.
type Request struct {
	Action       string                 `json:"action"`
	TaskID       string                 `json:"task_id,omitempty"`
	FilePath     string                 `json:"file_path,omitempty"`
	URL          string                 `json:"url,omitempty"`
	OutputPath   string                 `json:"output_path,omitempty"`
	DownloadDir  string                 `json:"download_dir,omitempty"`
	Format       string                 `json:"format,omitempty"`
	Quality      string                 `json:"quality,omitempty"`
	Title        string                 `json:"title,omitempty"`
	Artist       string                 `json:"artist,omitempty"`
	Album        string                 `json:"album,omitempty"`
	Year         int                    `json:"year,omitempty"`
	Genre        string                 `json:"genre,omitempty"`
	ThumbnailURL string                 `json:"thumbnail_url,omitempty"`
	Metadata     *engine.MetadataRecord `json:"metadata,omitempty"`
	CoverArt     *CoverArt              `json:"cover_art,omitempty"`
	Lyrics       string                 `json:"lyrics,omitempty"`
}

// Response is the processor's JSON reply. Only Success and Error are
// guaranteed; the rest depends on the action.
type Response struct {
	Success  bool                   `json:"success"`
	Error    string                 `json:"error,omitempty"`
	FilePath string                 `json:"file_path,omitempty"`
	FileSize int64                  `json:"file_size,omitempty"`
	Duration float64                `json:"duration,omitempty"`
	Metadata *engine.MetadataRecord `json:"metadata,omitempty"`
	Tracks   []engine.SearchResult  `json:"tracks,omitempty"`

	MissingRequiredFields []string `json:"missing_required_fields,omitempty"`
	CoverArtPresent       bool     `json:"cover_art_present,omitempty"`
	LyricsPresent         bool     `json:"lyrics_present,omitempty"`
}

type runFunc func(ctx context.Context, stdin []byte) (stdout, stderr []byte, err error)

// Processor runs the external audio processor, one process per request.
type Processor struct {
	command    string
	script     string
	ffmpegPath string
	timeout    time.Duration
	logger     engine.Logger
	run        runFunc
}

// Options configures the processor.
type Options struct {
	Command    string
	Script     string
	FFmpegPath string
	Timeout    time.Duration
	Logger     engine.Logger
}

func NewProcessor(opts Options) *Processor {
	if strings.TrimSpace(opts.Command) == "" {
		opts.Command = "python3"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	p := &Processor{
		command:    opts.Command,
		script:     strings.TrimSpace(opts.Script),
		ffmpegPath: strings.TrimSpace(opts.FFmpegPath),
		timeout:    opts.Timeout,
		logger:     opts.Logger,
	}
	p.run = p.exec
	return p
}

// Configured reports whether a processor script is set.
func (p *Processor) Configured() bool {
	return p != nil && p.script != ""
}

// Call sends req and decodes the reply. A reply without success is returned
// as a CollaboratorError.
func (p *Processor) Call(ctx context.Context, req *Request) (*Response, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Action, err)
	}
	payload = append(payload, '\n')

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	stdout, stderr, err := p.run(ctx, payload)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("processor %s failed: %s", req.Action, msg)
	}

	var resp Response
	if err := json.Unmarshal(lastJSONLine(stdout), &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", req.Action, err)
	}
	if p.logger != nil {
		p.logger.Debug("processor call", "action", req.Action, "success", resp.Success, "elapsed", time.Since(started))
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "unsuccessful response"
		}
		return &resp, &CollaboratorError{Action: req.Action, Message: msg}
	}
	return &resp, nil
}

func (p *Processor) exec(ctx context.Context, stdin []byte) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, p.command, p.script)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = os.Environ()
	if p.ffmpegPath != "" {
		cmd.Env = append(cmd.Env, "FFMPEG_BINARY="+p.ffmpegPath)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// lastJSONLine skips any log noise the script printed before its reply.
func lastJSONLine(out []byte) []byte {
	trimmed := bytes.TrimSpace(out)
	if json.Valid(trimmed) {
		return trimmed
	}
	lines := bytes.Split(trimmed, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) > 0 && line[0] == '{' {
			return line
		}
	}
	return trimmed
}
