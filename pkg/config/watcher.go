//    Copyright 2025 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// Editors often replace a file with several events in a burst.
	// Changes within this window collapse into a single notification.
	watchDebounce = time.Millisecond * 250
)

// Watch sends a signal on the returned channel whenever the file at the
// given path changes, until the given context is canceled.
// The parent directory is watched, since editors typically replace the
// file (rename) rather than write it in place.
func Watch(ctx context.Context, log zerolog.Logger, path string) (<-chan struct{}, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve '%s'", path)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create filesystem watcher")
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "failed to watch '%s'", filepath.Dir(absPath))
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(changes)
		var debounce *time.Timer
		var debounceC <-chan time.Time
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != absPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				log.Debug().
					Str("path", absPath).
					Str("op", event.Op.String()).
					Msg("Configuration file changed")
				if debounce == nil {
					debounce = time.NewTimer(watchDebounce)
					debounceC = debounce.C
				} else {
					debounce.Reset(watchDebounce)
				}
			case <-debounceC:
				debounce = nil
				debounceC = nil
				select {
				case changes <- struct{}{}:
				default:
					// A change is already pending
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Configuration watcher error")
			case <-ctx.Done():
				return
			}
		}
	}()
	return changes, nil
}
