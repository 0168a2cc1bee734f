package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vehiclesfx/extension/internal/audio"
)

// BankCache loads sound banks per vehicle model on first use and keeps them
// for the life of the process. Models without an asset folder are cached as
// nil so the filesystem is probed once.
type BankCache struct {
	engine audio.Engine
	root   string
	log    zerolog.Logger

	banks *gocache.Cache
	group singleflight.Group
}

// NewBankCache creates a cache reading assets from root/<model>/<name>.wav.
func NewBankCache(engine audio.Engine, root string, log zerolog.Logger) *BankCache {
	return &BankCache{
		engine: engine,
		root:   root,
		log:    log.With().Str("component", "bankcache").Logger(),
		banks:  gocache.New(gocache.NoExpiration, 0),
	}
}

// Root is the asset folder banks are loaded from.
func (c *BankCache) Root() string { return c.root }

// Get returns the bank for model, loading it on first call. The result may be nil.
func (c *BankCache) Get(model int) *Bank {
	key := strconv.Itoa(model)
	if v, ok := c.banks.Get(key); ok {
		return v.(*Bank)
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.banks.Get(key); ok {
			return v, nil
		}
		b := c.load(model)
		c.banks.Set(key, b, gocache.NoExpiration)
		return b, nil
	})
	return v.(*Bank)
}

// Cached reports whether model has been probed, and its bank.
func (c *BankCache) Cached(model int) (*Bank, bool) {
	v, ok := c.banks.Get(strconv.Itoa(model))
	if !ok {
		return nil, false
	}
	return v.(*Bank), true
}

// Loaded is the number of models with a non-nil bank.
func (c *BankCache) Loaded() int {
	n := 0
	for _, item := range c.banks.Items() {
		if b, _ := item.Object.(*Bank); b != nil {
			n++
		}
	}
	return n
}

// ReleaseAll releases every loaded sound and empties the cache.
func (c *BankCache) ReleaseAll() {
	for _, item := range c.banks.Items() {
		b, _ := item.Object.(*Bank)
		if b == nil {
			continue
		}
		for name, s := range b.sounds {
			if err := s.Release(); err != nil {
				c.log.Warn().Err(err).Int("model", b.Model).Str("asset", name).Msg("Sound release failed")
			}
		}
	}
	c.banks.Flush()
}

func (c *BankCache) load(model int) *Bank {
	log := c.log.With().Int("model", model).Logger()

	if c.engine == nil {
		log.Error().Err(audio.ErrNoEngine).Msg("Bank not loaded")
		return nil
	}

	dir := filepath.Join(c.root, strconv.Itoa(model))
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		log.Info().Str("dir", dir).Msg("No asset folder for model")
		return nil
	}

	b := newBank(model)
	for _, name := range AssetNames {
		path := filepath.Join(dir, name+".wav")
		if _, err := os.Stat(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Str("path", path).Msg("Asset not readable")
			} else {
				log.Debug().Str("asset", name).Msg("Asset missing")
			}
			continue
		}

		s, err := c.createSound(path, name)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Asset load failed")
			continue
		}
		b.sounds[name] = s
		log.Debug().Str("asset", name).Str("mode", modeString(s.Mode())).Msg("Asset loaded")
	}

	log.Info().Strs("assets", b.Names()).Msg("Bank loaded")
	return b
}

// createSound loads a positional sample, falling back to a plain sample when
// the engine refuses 3D, then applies the loop mode of the asset.
func (c *BankCache) createSound(path, name string) (audio.Sound, error) {
	mode := audio.Mode3D | audio.ModeCreateSample
	s, err := c.engine.CreateSound(path, name, mode)
	if err != nil {
		c.log.Debug().Err(err).Str("asset", name).Msg("3D load refused, retrying as sample")
		mode = audio.ModeCreateSample
		s, err = c.engine.CreateSound(path, name, mode)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case name == AssetWind:
		mode = (mode &^ audio.Mode3D) | audio.Mode2D | audio.ModeLoop
	case Looping(name):
		mode |= audio.ModeLoop
	default:
		mode |= audio.ModeLoopOff
	}
	if err := s.SetMode(mode); err != nil {
		c.log.Warn().Err(err).Str("asset", name).Msg("Set mode failed")
	}
	return s, nil
}

func modeString(m audio.Mode) string {
	s := "2d"
	if m.Positional() {
		s = "3d"
	}
	if m.Looping() {
		return s + "+loop"
	}
	return s + "+oneshot"
}
