package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Change is one setting that differs between two configs.
type Change struct {
	Key string
	// Live is true when the running bridge picks the change up; other keys
	// need a restart.
	Live bool
}

// Diff lists the settings that differ from prev to next, in a fixed order.
func Diff(prev, next *Config) []Change {
	var out []Change
	add := func(key string, live, changed bool) {
		if changed {
			out = append(out, Change{Key: key, Live: live})
		}
	}
	add("log_level", true, prev.LogLevel != next.LogLevel)
	add("history_limit", true, prev.HistoryLimit != next.HistoryLimit)
	add("room_idle_ttl", true, prev.RoomIdleTTL != next.RoomIdleTTL)
	add("port", false, prev.Port != next.Port)
	add("heartbeat", false, prev.Heartbeat != next.Heartbeat)
	add("default_channel", false, prev.DefaultChannel != next.DefaultChannel)
	add("send_buffer", false, prev.SendBuffer != next.SendBuffer)
	add("max_message_bytes", false, prev.MaxMessageBytes != next.MaxMessageBytes)
	add("max_message_rate", false, prev.MaxMessageRate != next.MaxMessageRate)
	add("auth", false, prev.Auth != next.Auth)
	return out
}

// Watch reloads path whenever it is written or recreated and hands the new
// Config to apply. current is the config in effect when Watch starts; it is
// replaced each time apply succeeds. Runs until ctx is cancelled.
//
// A reload that fails to parse or validate, or that apply rejects, is logged
// and the previous config stays current. A reload that changes nothing is
// not applied.
func Watch(ctx context.Context, path string, current *Config, apply func(*Config) error) error {
	if path == "" {
		return fmt.Errorf("config: watch: no file to watch")
	}
	if current == nil {
		current = defaults()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("config: watch %q: %w", path, err)
	}
	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Atomic-save editors replace the file, which shows up as Create.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				current = reload(path, current, apply)
				// The inode may have changed under an atomic save.
				_ = watcher.Add(path)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// reload loads path and applies it if anything changed. It returns the config
// now in effect.
func reload(path string, current *Config, apply func(*Config) error) *Config {
	next, err := Load(path)
	if err != nil {
		slog.Error("config: reload failed, keeping previous config", "path", path, "err", err)
		return current
	}
	changes := Diff(current, next)
	if len(changes) == 0 {
		return current
	}

	var live, restart []string
	for _, c := range changes {
		if c.Live {
			live = append(live, c.Key)
		} else {
			restart = append(restart, c.Key)
		}
	}
	if len(restart) > 0 {
		slog.Warn("config: changes need a restart", "keys", restart)
	}
	if len(live) == 0 {
		return next
	}
	if err := apply(next); err != nil {
		slog.Error("config: apply failed, keeping previous config", "keys", live, "err", err)
		return current
	}
	slog.Info("config: reloaded", "path", path, "applied", live)
	return next
}
