package drm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mpdgrab/internal/keys"
	"mpdgrab/internal/logging"
	"mpdgrab/internal/runner"
	"mpdgrab/internal/services"
)

// Output names of the decrypted elementary streams inside a job directory.
const (
	VideoFileName = "video.mp4"
	AudioFileName = "audio.m4a"
)

// Kind is the media kind of an elementary stream.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// StreamArtifact is an elementary stream on disk.
type StreamArtifact struct {
	Path      string
	Kind      Kind
	Decrypted bool
}

// Streams holds at most one artifact per kind.
type Streams struct {
	Video StreamArtifact
	Audio StreamArtifact
}

// Complete reports whether both kinds are present and decrypted.
func (s Streams) Complete() bool {
	return s.Video.Decrypted && s.Audio.Decrypted
}

// Missing lists the kinds that never decrypted.
func (s Streams) Missing() []Kind {
	var missing []Kind
	if !s.Video.Decrypted {
		missing = append(missing, KindVideo)
	}
	if !s.Audio.Decrypted {
		missing = append(missing, KindAudio)
	}
	return missing
}

// CommandRunner executes one external command.
type CommandRunner interface {
	Run(ctx context.Context, cmd runner.Command) (runner.Result, error)
}

// Decryptor wraps mp4decrypt.
type Decryptor struct {
	run    CommandRunner
	binary string
	logger *slog.Logger
}

// New constructs a Decryptor.
func New(binary string, run CommandRunner, logger *slog.Logger) *Decryptor {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "mp4decrypt"
	}
	return &Decryptor{run: run, binary: binary, logger: logging.NewComponentLogger(logger, "drm")}
}

// DecryptDir decrypts the raw streams found in dir. The returned Streams always
// reflects what was achieved, even when the error is non-nil.
func (d *Decryptor) DecryptDir(ctx context.Context, material keys.Material, dir string) (Streams, error) {
	streams := Streams{
		Video: StreamArtifact{Path: filepath.Join(dir, VideoFileName), Kind: KindVideo},
		Audio: StreamArtifact{Path: filepath.Join(dir, AudioFileName), Kind: KindAudio},
	}
	if len(material) == 0 {
		return streams, services.Wrap(services.ErrValidation, "decrypt", "mp4decrypt", "key material required", nil)
	}
	sources, err := rawStreams(dir)
	if err != nil {
		return streams, services.Wrap(services.ErrDecryptionIncomplete, "decrypt", "scan", dir, err)
	}
	logger := logging.WithContext(ctx, d.logger)
	logger.Info("decrypting streams", logging.Int("files", len(sources)))

	for _, src := range sources {
		var target *StreamArtifact
		switch strings.ToLower(filepath.Ext(src)) {
		case ".mp4":
			target = &streams.Video
		case ".m4a":
			target = &streams.Audio
		default:
			continue
		}
		if target.Decrypted {
			logger.Debug("ignoring extra stream", logging.String("path", src), logging.String("kind", string(target.Kind)))
			continue
		}
		if err := d.decryptOne(ctx, material, src, target); err != nil {
			return streams, err
		}
	}

	if !streams.Complete() {
		missing := make([]string, 0, 2)
		for _, kind := range streams.Missing() {
			missing = append(missing, string(kind))
		}
		return streams, services.Wrap(services.ErrDecryptionIncomplete, "decrypt", "mp4decrypt",
			fmt.Sprintf("%s stream not decrypted", strings.Join(missing, " and ")), nil)
	}
	logger.Info("streams decrypted", logging.String(logging.FieldEventType, "decrypt_complete"))
	return streams, nil
}

func (d *Decryptor) decryptOne(ctx context.Context, material keys.Material, src string, target *StreamArtifact) error {
	logger := logging.WithContext(ctx, d.logger).With(logging.String("kind", string(target.Kind)))
	_ = os.Remove(target.Path)
	args := append(material.Args(), "--show-progress", src, target.Path)
	result, runErr := d.run.Run(ctx, runner.Command{Name: d.binary, Args: args})

	if _, err := os.Stat(target.Path); err == nil {
		target.Decrypted = true
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "failed to remove raw stream", "raw_stream_cleanup_failed",
			logging.String("path", src),
			logging.Error(err),
			logging.String(logging.FieldImpact, "raw stream left on disk until workspace cleanup"),
		)
	}
	if runErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.WarnWithContext(logger, "mp4decrypt could not run", "decrypt_run_failed",
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, "check that mp4decrypt is installed"),
		)
		return nil
	}
	if !target.Decrypted {
		logging.WarnWithContext(logger, "mp4decrypt produced no output", "decrypt_no_output",
			logging.Int("exit_code", result.ExitCode),
			logging.String(logging.FieldErrorHint, "verify the key material matches the manifest"),
		)
	}
	return nil
}

// rawStreams lists regular files in dir, excluding decrypted outputs, in name order.
func rawStreams(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		switch entry.Name() {
		case VideoFileName, AudioFileName:
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
