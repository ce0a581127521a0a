package room

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadDefinitions reads the room-list file format of spec.md §6:
//
//	<game_name_csv> <room_id> <ranked> <country_code> <min_caste> <max_caste> <tournament>
//
// one room per whitespace-separated line, grounded verbatim on
// original_source/services/room_list.py's load_room_list. Lines that
// don't split into exactly 7 fields are skipped, matching the original's
// tolerant parsing (a metaserver operator hand-edits this file).
func LoadDefinitions(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("room: open %s: %w", path, err)
	}
	defer f.Close()

	var defs []Definition
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 7 {
			continue
		}
		flags := ParseGameTypeNames(fields[0])
		if flags == 0 {
			continue
		}
		roomID, err1 := strconv.Atoi(fields[1])
		ranked, err2 := strconv.Atoi(fields[2])
		country, err3 := strconv.Atoi(fields[3])
		minCaste, err4 := strconv.Atoi(fields[4])
		maxCaste, err5 := strconv.Atoi(fields[5])
		tournament, err6 := strconv.Atoi(fields[6])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
			continue
		}
		defs = append(defs, Definition{
			RoomID:         int32(roomID),
			SupportedGames: flags,
			Ranked:         ranked != 0,
			CountryCode:    country,
			MinCaste:       minCaste,
			MaxCaste:       maxCaste,
			Tournament:     tournament != 0,
			MaxMembers:     DefaultMaxMembers,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("room: scan %s: %w", path, err)
	}
	return defs, nil
}

// SaveDefinitions writes the flat-file format back out. No command in this
// repository calls it.
func SaveDefinitions(path string, defs []Definition) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("room: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, d := range defs {
		fmt.Fprintf(w, "%s %d %d %d %d %d %d\n",
			NameListFromFlags(d.SupportedGames), d.RoomID, boolInt(d.Ranked),
			d.CountryCode, d.MinCaste, d.MaxCaste, boolInt(d.Tournament))
	}
	return w.Flush()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// yamlRoomFile is the supplemented structured alternative to the flat
// file, adapted from the teacher's internal/data YAML table convention
// (gopkg.in/yaml.v3). Selected by file extension (.yml/.yaml) rather than
// by config flag, so either format can sit in the same configs/
// directory without additional wiring.
type yamlRoomFile struct {
	Rooms []yamlRoomEntry `yaml:"rooms"`
}

type yamlRoomEntry struct {
	Games       string `yaml:"games"`
	RoomID      int32  `yaml:"room_id"`
	Ranked      bool   `yaml:"ranked"`
	CountryCode int    `yaml:"country_code"`
	MinCaste    int    `yaml:"min_caste"`
	MaxCaste    int    `yaml:"max_caste"`
	Tournament  bool   `yaml:"tournament"`
	MaxMembers  int    `yaml:"max_members"`
}

// LoadDefinitionsYAML parses the structured form; MaxMembers defaults to
// DefaultMaxMembers when omitted or zero.
func LoadDefinitionsYAML(path string) ([]Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("room: open %s: %w", path, err)
	}
	var parsed yamlRoomFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("room: parse %s: %w", path, err)
	}
	defs := make([]Definition, 0, len(parsed.Rooms))
	for _, e := range parsed.Rooms {
		max := e.MaxMembers
		if max <= 0 {
			max = DefaultMaxMembers
		}
		defs = append(defs, Definition{
			RoomID:         e.RoomID,
			SupportedGames: ParseGameTypeNames(e.Games),
			Ranked:         e.Ranked,
			CountryCode:    e.CountryCode,
			MinCaste:       e.MinCaste,
			MaxCaste:       e.MaxCaste,
			Tournament:     e.Tournament,
			MaxMembers:     max,
		})
	}
	return defs, nil
}

// Load dispatches to the flat-file or YAML loader by extension.
func Load(path string) ([]Definition, error) {
	switch filepath.Ext(path) {
	case ".yml", ".yaml":
		return LoadDefinitionsYAML(path)
	default:
		return LoadDefinitions(path)
	}
}
