// Package download provides secure ffmpeg-based media downloading.
// Uses exec.Command with explicit argument slices and validates
// output paths against directory traversal attacks.
package download

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"

	"mediagrab/internal/adapter"
	"mediagrab/internal/filesystem"
	"mediagrab/internal/httputil"
	"mediagrab/internal/log"
	"mediagrab/internal/media"
)

// rtmpOptions maps protocol parameters onto ffmpeg's rtmp demuxer options.
var rtmpOptions = []struct{ param, flag string }{
	{adapter.ParamApp, "-rtmp_app"},
	{adapter.ParamPlayPath, "-rtmp_playpath"},
	{adapter.ParamPageURL, "-rtmp_pageurl"},
	{adapter.ParamPlayerURL, "-rtmp_swfurl"},
}

// Download fetches a format to a local file using ffmpeg.
func Download(ctx context.Context, f media.Format, title, outputDir, subFile string) (string, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	absDir, err := filepath.Abs(outputDir)
	if err != nil {
		return "", fmt.Errorf("resolving output directory: %w", err)
	}
	fsys := filesystem.API()
	if err := fsys.MkdirAll(absDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	outputPath, err := httputil.SafeDownloadPath(absDir, OutputName(title, f))
	if err != nil {
		return "", fmt.Errorf("invalid output path: %w", err)
	}

	args := Args(f, title, outputPath, subFile)
	log.Debugf("ffmpeg %s", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Fprintf(os.Stderr, "Downloading %s to: %s\n", f.FormatID, outputPath)

	if err := cmd.Run(); err != nil {
		// Clean up partial download on failure
		fsys.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg download failed: %w", err)
	}

	return outputPath, nil
}

// OutputName returns the file name for a download: the sanitized title and
// an mka container for audio-only formats, mkv otherwise.
func OutputName(title string, f media.Format) string {
	ext := ".mkv"
	if f.IsAudioOnly() {
		ext = ".mka"
	}
	return httputil.SanitizeFilename(title) + ext
}

// InputURL returns the URL ffmpeg should open. Segment-template DASH
// formats carry a "#<representation>" fragment that is not part of the
// manifest address.
func InputURL(f media.Format) string {
	manifest, _ := splitRepresentation(f)
	return manifest
}

// Representation returns the DASH representation id a segment-template
// format selects, or "" for every other format.
func Representation(f media.Format) string {
	_, rep := splitRepresentation(f)
	return rep
}

func splitRepresentation(f media.Format) (manifest, rep string) {
	if f.Protocol != media.DASH {
		return f.URL, ""
	}
	manifest, rep, _ = strings.Cut(f.URL, "#")
	return manifest, rep
}

// Args builds the ffmpeg argument list for saving f to outputPath.
func Args(f media.Format, title, outputPath, subFile string) []string {
	args := []string{"-y"}
	args = append(args, inputOptions(f)...)
	args = append(args, "-i", InputURL(f))

	if subFile != "" {
		args = append(args, "-i", subFile)
	}

	// ffmpeg's dash demuxer exposes each representation id as stream
	// metadata, so only the selected one is kept.
	if rep := Representation(f); rep != "" {
		args = append(args, "-map", "0:m:id:"+rep)
	} else {
		args = append(args,
			"-map", "0:v?",
			"-map", "0:a?",
		)
	}
	if subFile != "" {
		args = append(args, "-map", "1:s", "-c:s", "srt")
	}
	args = append(args, "-c:v", "copy", "-c:a", "copy")

	args = append(args,
		"-metadata", fmt.Sprintf("title=%s", title),
		outputPath,
	)
	return args
}

// inputOptions returns the options that must precede -i: request headers
// for HTTP based protocols, connection parameters for RTMP.
func inputOptions(f media.Format) []string {
	if f.Protocol == media.RTMP {
		var opts []string
		for _, o := range rtmpOptions {
			if v := f.ProtocolParams[o.param]; v != "" {
				opts = append(opts, o.flag, v)
			}
		}
		if f.ProtocolParams[adapter.ParamLive] == "true" {
			opts = append(opts, "-rtmp_live", "live")
		}
		return opts
	}

	if len(f.Headers) == 0 {
		return nil
	}
	var opts []string
	if ua, ok := f.Headers["User-Agent"]; ok {
		opts = append(opts, "-user_agent", ua)
	}
	keys := lo.Filter(lo.Keys(f.Headers), func(k string, _ int) bool { return k != "User-Agent" })
	if len(keys) == 0 {
		return opts
	}
	slices.Sort(keys)
	var hdr strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&hdr, "%s: %s\r\n", k, f.Headers[k])
	}
	return append(opts, "-headers", hdr.String())
}
