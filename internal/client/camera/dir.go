package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Dir is a Device that plays the image files of a directory as camera
// frames, one every Interval, looping when Loop is set.  Kiosks use it
// with an external capture process writing snapshots into the
// directory; tests use it with prepared QR images.
type Dir struct {
	Path     string
	Interval time.Duration
	Loop     bool
	Clock    clockwork.Clock

	held atomic.Bool
}

// NewDir returns a looping Dir device with a 100ms frame interval.
func NewDir(path string) *Dir {
	return &Dir{Path: path, Interval: 100 * time.Millisecond, Loop: true}
}

var imageExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

// Acquire opens the directory.  The Dir has a single lens, so facing is
// accepted but not used.
func (d *Dir) Acquire(ctx context.Context, _ Facing) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !d.held.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	files, err := d.list()
	if err != nil {
		d.held.Store(false)
		return nil, err
	}

	clock := d.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	interval := d.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	s := &dirStream{
		frames:  make(chan image.Image, 1),
		stop:    make(chan struct{}),
		release: func() { d.held.Store(false) },
	}
	s.wg.Add(1)
	go s.play(files, d.Loop, clock.NewTicker(interval))
	return s, nil
}

func (d *Dir) list() ([]string, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExt[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(d.Path, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrNoDevice, d.Path)
	}
	sort.Strings(files)
	return files, nil
}

type dirStream struct {
	frames  chan image.Image
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	release func()
}

func (s *dirStream) Frames() <-chan image.Image { return s.frames }

func (s *dirStream) Close() error {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		s.release()
	})
	return nil
}

func (s *dirStream) play(files []string, loop bool, tk clockwork.Ticker) {
	defer s.wg.Done()
	defer close(s.frames)
	defer tk.Stop()

	for i := 0; ; i++ {
		if i == len(files) {
			if !loop {
				return
			}
			i = 0
		}
		select {
		case <-s.stop:
			return
		case <-tk.Chan():
		}
		img, err := readImage(files[i])
		if err != nil {
			continue
		}
		// a slow reader sees the newest frame, never a backlog
		select {
		case s.frames <- img:
		default:
			select {
			case <-s.frames:
			default:
			}
			select {
			case s.frames <- img:
			default:
			}
		}
	}
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
