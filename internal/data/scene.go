package data

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/l1jgo/undoredo/internal/scene"
	"gopkg.in/yaml.v3"
)

// SceneEntry is one game object in a scene file.
type SceneEntry struct {
	Name    string   `yaml:"name"`
	X       int32    `yaml:"x"`
	Y       int32    `yaml:"y"`
	MapID   int16    `yaml:"map_id"`
	Heading int16    `yaml:"heading"`
	HP      int16    `yaml:"hp,omitempty"`
	MaxHP   int16    `yaml:"max_hp,omitempty"`
	Tags    []string `yaml:"tags,omitempty"`
}

type sceneFile struct {
	Name    string       `yaml:"name"`
	Objects []SceneEntry `yaml:"objects"`
}

// SceneData is a parsed scene file.
type SceneData struct {
	Name    string
	Objects []scene.Object
}

// LoadSceneFile loads a yaml scene description.
func LoadSceneFile(path string) (*SceneData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene file: %w", err)
	}
	var f sceneFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse scene file: %w", err)
	}
	sd := &SceneData{Name: f.Name, Objects: make([]scene.Object, 0, len(f.Objects))}
	for i, e := range f.Objects {
		if e.Name == "" {
			return nil, fmt.Errorf("scene file %s: object %d has no name", path, i)
		}
		if e.MaxHP > 0 && e.HP > e.MaxHP {
			return nil, fmt.Errorf("scene file %s: object %q hp %d above max %d", path, e.Name, e.HP, e.MaxHP)
		}
		sd.Objects = append(sd.Objects, scene.Object{
			Name:      e.Name,
			X:         e.X,
			Y:         e.Y,
			MapID:     e.MapID,
			Heading:   e.Heading,
			HP:        e.HP,
			MaxHP:     e.MaxHP,
			Tags:      e.Tags,
			HasHealth: e.MaxHP > 0,
		})
	}
	return sd, nil
}

// WriteSceneFile exports objects as a yaml scene. The file is written to a
// temp name first and renamed so a crash never leaves half a scene behind.
func WriteSceneFile(path, name string, objs []scene.Object) error {
	f := sceneFile{Name: name, Objects: make([]SceneEntry, len(objs))}
	for i, o := range objs {
		f.Objects[i] = SceneEntry{
			Name:    o.Name,
			X:       o.X,
			Y:       o.Y,
			MapID:   o.MapID,
			Heading: o.Heading,
			HP:      o.HP,
			MaxHP:   o.MaxHP,
			Tags:    o.Tags,
		}
	}
	raw, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("encode scene file: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create scene dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write scene file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace scene file: %w", err)
	}
	return nil
}
