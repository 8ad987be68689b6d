package mapping

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
)

const (
	sensorKey     = "sensor_mapping"
	defaultAction = "default"
)

// Cut ties one scripted cut of a scene to its rendered clip.
type Cut struct {
	Action    string `json:"action"`
	VideoPath string `json:"video_path"`
}

// Document is the scene mapping produced by the generation pipeline. The
// top level of the JSON file keys scenes by number, each holding its cut
// table, with the per-scene sensor tables stored beside them under
// "sensor_mapping".
type Document struct {
	Scenes map[int]map[string]Cut
	Sensor map[int]map[string]string
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Scenes = make(map[int]map[string]Cut)
	d.Sensor = make(map[int]map[string]string)
	for key, val := range raw {
		if key == sensorKey {
			var sensor map[string]map[string]string
			if err := json.Unmarshal(val, &sensor); err != nil {
				return fmt.Errorf("sensor mapping: %w", err)
			}
			for sk, actions := range sensor {
				id, err := strconv.Atoi(sk)
				if err != nil {
					continue
				}
				d.Sensor[id] = actions
			}
			continue
		}
		id, err := strconv.Atoi(key)
		if err != nil {
			// Legacy scene_N sections are skipped.
			continue
		}
		var cuts map[string]Cut
		if err := json.Unmarshal(val, &cuts); err != nil {
			return fmt.Errorf("scene %d: %w", id, err)
		}
		d.Scenes[id] = cuts
	}
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Scenes)+1)
	for id, cuts := range d.Scenes {
		out[strconv.Itoa(id)] = cuts
	}
	if len(d.Sensor) > 0 {
		sensor := make(map[string]map[string]string, len(d.Sensor))
		for id, actions := range d.Sensor {
			sensor[strconv.Itoa(id)] = actions
		}
		out[sensorKey] = sensor
	}
	return json.Marshal(out)
}

// Lookup resolves the clip for a scene and action, falling back to the
// scene's default entry when the action has no direct mapping.
func (d Document) Lookup(scene int, action string) (string, bool) {
	actions, ok := d.Sensor[scene]
	if !ok {
		return "", false
	}
	if clip, ok := actions[action]; ok {
		return clip, true
	}
	clip, ok := actions[defaultAction]
	return clip, ok
}

// CutAction returns the scripted action of one cut of a scene.
func (d Document) CutAction(scene, cut int) (string, bool) {
	c, ok := d.Scenes[scene][strconv.Itoa(cut)]
	if !ok {
		return "", false
	}
	return c.Action, true
}

// BuildSensor derives sensor tables for scenes that lack one, mapping each
// cut's action to its clip. The default entry prefers the stop clip and
// otherwise takes the lowest-numbered cut.
func (d *Document) BuildSensor() {
	if d.Sensor == nil {
		d.Sensor = make(map[int]map[string]string, len(d.Scenes))
	}
	for id, cuts := range d.Scenes {
		if len(cuts) == 0 {
			continue
		}
		if _, ok := d.Sensor[id]; ok {
			continue
		}

		nums := make([]int, 0, len(cuts))
		for key := range cuts {
			n, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			nums = append(nums, n)
		}
		sort.Ints(nums)

		actions := make(map[string]string, len(nums)+1)
		for _, n := range nums {
			cut := cuts[strconv.Itoa(n)]
			if _, ok := actions[cut.Action]; !ok {
				actions[cut.Action] = filepath.Base(cut.VideoPath)
			}
		}
		if _, ok := actions[defaultAction]; !ok {
			if clip, ok := actions["stop"]; ok {
				actions[defaultAction] = clip
			} else if len(nums) > 0 {
				actions[defaultAction] = filepath.Base(cuts[strconv.Itoa(nums[0])].VideoPath)
			}
		}
		d.Sensor[id] = actions
	}
}

func (d Document) clone() *Document {
	out := Document{
		Scenes: make(map[int]map[string]Cut, len(d.Scenes)),
		Sensor: make(map[int]map[string]string, len(d.Sensor)),
	}
	for id, cuts := range d.Scenes {
		m := make(map[string]Cut, len(cuts))
		for k, v := range cuts {
			m[k] = v
		}
		out.Scenes[id] = m
	}
	for id, actions := range d.Sensor {
		m := make(map[string]string, len(actions))
		for k, v := range actions {
			m[k] = v
		}
		out.Sensor[id] = m
	}
	return &out
}
