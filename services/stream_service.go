package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"streamOverlayAPI/internal/types/stream"
)

const (
	playlistName   = "index.m3u8"
	segmentPattern = "segment_%03d.ts"
	outputTailSize = 20
	stopTimeout    = 5 * time.Second
)

// CommandFunc builds the process for a conversion. Tests swap it out.
type CommandFunc func(name string, arg ...string) *exec.Cmd

type streamProcess struct {
	id        string
	rtspURL   string
	dir       string
	startedAt time.Time
	cmd       *exec.Cmd
	done      chan struct{}

	mu   sync.Mutex
	tail []string
}

func (p *streamProcess) running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *streamProcess) appendOutput(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tail = append(p.tail, line)
	if len(p.tail) > outputTailSize {
		p.tail = p.tail[len(p.tail)-outputTailSize:]
	}
}

func (p *streamProcess) output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.tail, "\n")
}

// StreamService runs one ffmpeg conversion per stream session and serves the
// resulting HLS files from its own directory.
type StreamService struct {
	streamsDir   string
	ffmpegPath   string
	baseURL      string
	command      CommandFunc
	startupProbe time.Duration
	available    bool

	mu      sync.Mutex
	streams map[string]*streamProcess
}

func NewStreamService(streamsDir, ffmpegPath, baseURL string) (*StreamService, error) {
	if err := os.MkdirAll(streamsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create streams directory: %w", err)
	}

	s := &StreamService{
		streamsDir:   streamsDir,
		ffmpegPath:   ffmpegPath,
		baseURL:      strings.TrimRight(baseURL, "/"),
		command:      exec.Command,
		startupProbe: time.Second,
		streams:      make(map[string]*streamProcess),
	}
	s.available = s.checkFFmpeg()
	return s, nil
}

// SetCommand replaces the process builder and marks ffmpeg as available.
func (s *StreamService) SetCommand(command CommandFunc, startupProbe time.Duration) {
	s.command = command
	s.startupProbe = startupProbe
	s.available = true
}

func (s *StreamService) FFmpegAvailable() bool {
	return s.available
}

func (s *StreamService) checkFFmpeg() bool {
	if err := s.command(s.ffmpegPath, "-version").Run(); err != nil {
		log.Printf("FFmpeg not found at %q. Please install FFmpeg and add to PATH: %v", s.ffmpegPath, err)
		return false
	}
	log.Println("FFmpeg is available")
	return true
}

func (s *StreamService) StartRTSP(ctx context.Context, rtspURL string) (*stream.StartResponse, error) {
	rtspURL = strings.TrimSpace(rtspURL)
	if rtspURL == "" {
		return nil, stream.ErrRTSPURLRequired
	}
	if !strings.HasPrefix(rtspURL, "rtsp://") {
		return nil, stream.ErrInvalidRTSPURL
	}

	resp, err := s.start(ctx, rtspURL, RTSPArgs(rtspURL))
	if err != nil {
		return nil, err
	}
	resp.Message = "Stream started. Please wait 10-15 seconds for video to load."
	return resp, nil
}

func (s *StreamService) StartTest(ctx context.Context) (*stream.StartResponse, error) {
	resp, err := s.start(ctx, stream.TestPatternURL, TestPatternArgs())
	if err != nil {
		return nil, err
	}
	resp.Message = "Test stream started with generated pattern"
	return resp, nil
}

// RTSPArgs is the input half of the RTSP to HLS conversion.
func RTSPArgs(rtspURL string) []string {
	return []string{
		"-rtsp_transport", "tcp",
		"-timeout", "10000000",
		"-i", rtspURL,
		"-c:v", "copy",
		"-c:a", "aac",
	}
}

// TestPatternArgs generates a 720p test card with a sine tone, no network needed.
func TestPatternArgs() []string {
	return []string{
		"-f", "lavfi",
		"-i", "testsrc=duration=300:size=1280x720:rate=30",
		"-f", "lavfi",
		"-i", "sine=frequency=1000:duration=300",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-c:a", "aac",
	}
}

// HLSArgs is the output half shared by every conversion.
func HLSArgs(dir string) []string {
	return []string{
		"-f", "hls",
		"-hls_time", "2",
		"-hls_list_size", "10",
		"-hls_flags", "delete_segments+append_list",
		"-hls_segment_filename", filepath.Join(dir, segmentPattern),
		"-y",
		filepath.Join(dir, playlistName),
	}
}

func (s *StreamService) start(ctx context.Context, source string, inputArgs []string) (*stream.StartResponse, error) {
	if !s.available {
		return nil, stream.ErrFFmpegUnavailable
	}

	id := uuid.New().String()
	dir := filepath.Join(s.streamsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create stream directory: %w", err)
	}

	args := append(inputArgs, HLSArgs(dir)...)
	cmd := s.command(s.ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to get FFmpeg output: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	log.Printf("Starting FFmpeg for stream %s from %s", id, source)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %v", stream.ErrStartFailed, err)
	}

	p := &streamProcess{
		id:        id,
		rtspURL:   source,
		dir:       dir,
		startedAt: time.Now().UTC(),
		cmd:       cmd,
		done:      make(chan struct{}),
	}
	go s.monitor(p, stdout)

	// A bad URL or codec makes ffmpeg exit almost immediately.
	select {
	case <-p.done:
		os.RemoveAll(dir)
		details := p.output()
		log.Printf("[Stream %s] FFmpeg failed immediately: %s", shortID(id), details)
		return nil, fmt.Errorf("%w. Check RTSP URL or FFmpeg installation: %s", stream.ErrStartFailed, truncate(details, 500))
	case <-time.After(s.startupProbe):
	case <-ctx.Done():
		s.terminate(p)
		os.RemoveAll(dir)
		return nil, ctx.Err()
	}

	s.mu.Lock()
	s.streams[id] = p
	activeStreams.Set(float64(len(s.streams)))
	s.mu.Unlock()

	log.Printf("Stream started: %s, HLS output in %s", id, dir)

	return &stream.StartResponse{
		StreamID: id,
		HLSURL:   s.PlaybackURL(id),
		Status:   stream.StatusStarted,
	}, nil
}

// monitor relays ffmpeg output to the log and reaps the process.
func (s *StreamService) monitor(p *streamProcess, out io.Reader) {
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.appendOutput(line)
		log.Printf("[FFmpeg %s] %s", shortID(p.id), line)
	}

	err := p.cmd.Wait()
	if err != nil {
		log.Printf("[Stream %s] FFmpeg exited: %v", shortID(p.id), err)
	}
	close(p.done)
}

func (s *StreamService) PlaybackURL(id string) string {
	return fmt.Sprintf("%s/streams/%s/%s", s.baseURL, id, playlistName)
}

func (s *StreamService) Stop(id string) error {
	s.mu.Lock()
	p, ok := s.streams[id]
	if ok {
		delete(s.streams, id)
		activeStreams.Set(float64(len(s.streams)))
	}
	s.mu.Unlock()

	if !ok {
		return stream.ErrNotFound
	}

	s.terminate(p)
	if err := os.RemoveAll(p.dir); err != nil {
		log.Printf("[Stream %s] Failed to remove segments: %v", shortID(id), err)
	}
	log.Printf("Stream stopped: %s", id)
	return nil
}

func (s *StreamService) terminate(p *streamProcess) {
	if !p.running() {
		return
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Printf("[Stream %s] Failed to signal FFmpeg: %v", shortID(p.id), err)
	}

	select {
	case <-p.done:
	case <-time.After(stopTimeout):
		log.Printf("[Stream %s] FFmpeg did not exit in %s, killing", shortID(p.id), stopTimeout)
		p.cmd.Process.Kill()
		<-p.done
	}
}

func (s *StreamService) Status() []stream.Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]stream.Info, 0, len(s.streams))
	for _, p := range s.streams {
		infos = append(infos, stream.Info{
			StreamID:  p.id,
			RTSPURL:   p.rtspURL,
			StartedAt: p.startedAt,
			Running:   p.running(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

func (s *StreamService) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.streams[id]
	return ok
}

func (s *StreamService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// ReapExited forgets streams whose ffmpeg process is gone and deletes their
// segment directories. It returns the ids it removed.
func (s *StreamService) ReapExited() []string {
	s.mu.Lock()
	var reaped []*streamProcess
	for id, p := range s.streams {
		if !p.running() {
			reaped = append(reaped, p)
			delete(s.streams, id)
		}
	}
	activeStreams.Set(float64(len(s.streams)))
	s.mu.Unlock()

	ids := make([]string, 0, len(reaped))
	for _, p := range reaped {
		if err := os.RemoveAll(p.dir); err != nil {
			log.Printf("[Stream %s] Failed to remove segments: %v", shortID(p.id), err)
		}
		ids = append(ids, p.id)
	}
	return ids
}

// Shutdown stops every active conversion.
func (s *StreamService) Shutdown() {
	log.Println("Cleaning up active streams...")

	s.mu.Lock()
	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.Stop(id); err != nil {
			log.Printf("Error stopping stream %s: %v", id, err)
		}
	}
}

// ResolveFile maps a playlist or segment name of a stream to a file on disk.
func (s *StreamService) ResolveFile(id, filename string) (string, string, error) {
	if !safeName(id) || !safeName(filename) {
		return "", "", stream.ErrNotFound
	}

	dir := filepath.Join(s.streamsDir, id)
	if _, err := os.Stat(dir); err != nil {
		return "", "", stream.ErrNotFound
	}

	path := filepath.Join(dir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", "", fmt.Errorf("%w: %s", stream.ErrSegmentNotReady, filename)
	}

	return path, contentTypeFor(filename), nil
}

func safeName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	default:
		return ""
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
