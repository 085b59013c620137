package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/clipforge/api/internal/model"
)

// FFmpeg runs transformations by shelling out to ffmpeg and ffprobe.
type FFmpeg struct{}

func NewFFmpeg() *FFmpeg {
	return &FFmpeg{}
}

// Available reports whether the ffmpeg binary can be found on PATH.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

func (f *FFmpeg) run(ctx context.Context, name string, args []string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().Err(err).Str("cmd", name).Str("stderr", tail(stderr.String())).Msg("command failed")
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// tail keeps the last part of ffmpeg's stderr, which is where the actual
// failure reason ends up.
func tail(s string) string {
	const max = 512
	if len(s) > max {
		return s[len(s)-max:]
	}
	return s
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

func (f *FFmpeg) Probe(ctx context.Context, inputPath string) (*model.VideoMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		log.Error().Err(err).Str("path", inputPath).Str("stderr", tail(stderr.String())).Msg("ffprobe failed")
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	meta := &model.VideoMetadata{}
	meta.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	meta.Size, _ = strconv.ParseInt(out.Format.Size, 10, 64)

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		meta.Width = s.Width
		meta.Height = s.Height
		meta.FPS = parseFrameRate(s.RFrameRate)
		return meta, nil
	}
	return nil, fmt.Errorf("no video stream in %s", inputPath)
}

// parseFrameRate evaluates ffprobe's "num/den" rational frame rate.
func parseFrameRate(r string) float64 {
	parts := strings.SplitN(r, "/", 2)
	if len(parts) != 2 {
		v, _ := strconv.ParseFloat(r, 64)
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func (f *FFmpeg) Trim(ctx context.Context, inputPath, outputPath string, startTime, endTime float64) error {
	duration := endTime - startTime
	args := []string{
		"-i", inputPath,
		"-ss", formatSeconds(startTime),
		"-t", formatSeconds(duration),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y",
		outputPath,
	}
	return f.run(ctx, "ffmpeg", args)
}

func (f *FFmpeg) TextOverlay(ctx context.Context, inputPath, outputPath string, p TextOverlayParams) error {
	filter := fmt.Sprintf("drawtext=text='%s':x=%d:y=%d:fontsize=%d:fontcolor=%s",
		escapeDrawtext(p.Content), p.X, p.Y, p.FontSize, p.FontColor)

	if p.FontFamily != "" && p.FontFamily != "Arial" {
		filter += fmt.Sprintf(":fontfile=/usr/share/fonts/truetype/liberation/%s.ttf", p.FontFamily)
	}
	filter += enableWindow(p.StartTime, p.EndTime)

	args := []string{
		"-i", inputPath,
		"-vf", filter,
		"-c:a", "copy",
		"-y",
		outputPath,
	}
	return f.run(ctx, "ffmpeg", args)
}

func (f *FFmpeg) FileOverlay(ctx context.Context, inputPath, outputPath string, p FileOverlayParams) error {
	filter := fmt.Sprintf("overlay=%d:%d", p.X, p.Y)
	filter += enableWindow(p.StartTime, p.EndTime)

	args := []string{
		"-i", inputPath,
		"-i", p.OverlayPath,
		"-filter_complex", fmt.Sprintf("[0:v][1:v]%s[v]", filter),
		"-map", "[v]",
		"-map", "0:a?",
		"-c:a", "copy",
		"-y",
		outputPath,
	}
	return f.run(ctx, "ffmpeg", args)
}

func (f *FFmpeg) Watermark(ctx context.Context, inputPath, outputPath string, p WatermarkParams) error {
	var chain strings.Builder
	watermarkInput := "[1:v]"

	if p.Scale != 1.0 {
		fmt.Fprintf(&chain, "[1:v]scale=iw*%g:ih*%g[scaled];", p.Scale, p.Scale)
		watermarkInput = "[scaled]"
	}
	if p.Opacity < 1.0 {
		fmt.Fprintf(&chain, "%sformat=rgba,colorchannelmixer=aa=%g[transparent];", watermarkInput, p.Opacity)
		watermarkInput = "[transparent]"
	}
	fmt.Fprintf(&chain, "[0:v]%soverlay=%d:%d[v]", watermarkInput, p.X, p.Y)

	args := []string{
		"-i", inputPath,
		"-i", p.WatermarkPath,
		"-filter_complex", chain.String(),
		"-map", "[v]",
		"-map", "0:a?",
		"-c:a", "copy",
		"-y",
		outputPath,
	}
	return f.run(ctx, "ffmpeg", args)
}

func (f *FFmpeg) ConvertQuality(ctx context.Context, inputPath, outputPath string, s model.QualitySettings) error {
	args := []string{
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=%d:%d", s.Width, s.Height),
		"-c:v", "libx264",
		"-preset", "medium",
		"-b:v", s.Bitrate,
		"-c:a", "aac",
		"-b:a", "128k",
		"-y",
		outputPath,
	}
	return f.run(ctx, "ffmpeg", args)
}

// enableWindow builds the drawtext/overlay enable expression that limits an
// overlay to its timing window.
func enableWindow(start float64, end *float64) string {
	if start <= 0 && end == nil {
		return ""
	}
	if end != nil {
		return fmt.Sprintf(":enable='between(t,%s,%s)'", formatSeconds(start), formatSeconds(*end))
	}
	return fmt.Sprintf(":enable='gte(t,%s)'", formatSeconds(start))
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func escapeDrawtext(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, `:`, `\:`)
	return s
}
