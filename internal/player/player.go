// Package player provides a secure interface for launching media players.
// All player invocations use exec.Command with explicit argument slices.
package player

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/samber/lo"

	"mediagrab/internal/adapter"
	"mediagrab/internal/download"
	"mediagrab/internal/log"
	"mediagrab/internal/media"
)

// Player is the interface for media player implementations.
type Player interface {
	// Play starts playback of a format and blocks until the player exits.
	Play(ctx context.Context, f media.Format, title, subFile string) error

	// Args returns the command line Play would use.
	Args(f media.Format, title, subFile string) []string

	// Name returns the player name.
	Name() string

	// Available checks if the player binary exists in PATH.
	Available() bool
}

// New creates a player by name.
func New(name string) Player {
	switch name {
	case "mpv":
		return &MPV{}
	case "vlc":
		return &VLC{}
	case "iina", "celluloid":
		return &Generic{name: name}
	default:
		return &MPV{} // Default to mpv
	}
}

func available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// run starts a player and waits for it. Players exit non-zero when the
// user quits, which is not an error.
func run(ctx context.Context, name string, args []string) error {
	log.Debugf("%s %s", name, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return fmt.Errorf("running %s: %w", name, err)
	}
	return nil
}

// headerFields renders request headers other than User-Agent as "K: V"
// strings in key order.
func headerFields(headers map[string]string) []string {
	keys := lo.Filter(lo.Keys(headers), func(k string, _ int) bool { return k != "User-Agent" })
	slices.Sort(keys)
	return lo.Map(keys, func(k string, _ int) string { return k + ": " + headers[k] })
}

// mpvArgs builds the mpv-compatible command line shared by mpv, iina and
// celluloid.
func mpvArgs(f media.Format, title, subFile string) []string {
	args := []string{
		download.InputURL(f),
		"--force-media-title=" + title,
	}

	if ua := f.Headers["User-Agent"]; ua != "" {
		args = append(args, "--user-agent="+ua)
	}
	if fields := headerFields(f.Headers); len(fields) > 0 {
		args = append(args, "--http-header-fields="+strings.Join(fields, ","))
	}
	if f.Protocol == media.RTMP {
		if opts := rtmpLavfOptions(f.ProtocolParams); opts != "" {
			args = append(args, "--demuxer-lavf-o="+opts)
		}
	}

	if subFile != "" {
		args = append(args, "--sub-file="+subFile)
	}
	return args
}

func rtmpLavfOptions(params map[string]string) string {
	var opts []string
	if v := params[adapter.ParamApp]; v != "" {
		opts = append(opts, "rtmp_app="+v)
	}
	if v := params[adapter.ParamPlayPath]; v != "" {
		opts = append(opts, "rtmp_playpath="+v)
	}
	if params[adapter.ParamLive] == "true" {
		opts = append(opts, "rtmp_live=live")
	}
	return strings.Join(opts, ",")
}
