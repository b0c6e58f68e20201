package seedlist

import (
	"fmt"
	"math/rand/v2"
)

var (
	namePrefixes = []string{"Tartarus", "Acheron", "Slaughterhouse", "Bloodbath", "Sonic Wave", "Zodiac", "Abyss", "Kenos", "Silent", "Cataclysm"}
	nameSuffixes = []string{"", " II", " Rebirth", " Remake", " X", " Infinity", " Extreme", " Sequel"}
	creators     = []string{"Riot", "Zoink", "Trick", "Cursed", "Doggie", "Viprin", "Knobbelboy", "Sunix"}
)

type demonSpec struct {
	Name        string `json:"name"`
	Requirement int    `json:"requirement"`
	Publisher   string `json:"publisher"`
	Verifier    string `json:"verifier"`
	Position    *int   `json:"position,omitempty"`
}

type recordSpec struct {
	player   int // index into the player plan
	demon    int // index into the demon plan
	progress int
}

type plan struct {
	demons  []demonSpec
	players []string
	records []recordSpec
}

// generatePlan builds a deterministic set of demons, players and records.
// Each (player, demon) pair appears at most once so submissions never
// conflict with each other.
func generatePlan(cfg *Config) plan {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	p := plan{
		demons:  make([]demonSpec, cfg.Demons),
		players: make([]string, cfg.Players),
	}

	for i := range p.demons {
		d := demonSpec{
			Name: fmt.Sprintf("%s%s %d",
				namePrefixes[rng.IntN(len(namePrefixes))], nameSuffixes[rng.IntN(len(nameSuffixes))], i+1),
			Requirement: 40 + rng.IntN(61),
			Publisher:   creators[rng.IntN(len(creators))],
			Verifier:    creators[rng.IntN(len(creators))],
		}
		// Every third demon is placed somewhere inside the list instead of
		// at the end, which exercises the shifting path.
		if i > 0 && i%3 == 0 {
			pos := 1 + rng.IntN(i)
			d.Position = &pos
		}
		p.demons[i] = d
	}
	for i := range p.players {
		p.players[i] = fmt.Sprintf("seed-player-%04d", i+1)
	}

	if cfg.Demons == 0 || cfg.Players == 0 {
		return p
	}
	limit := min(cfg.Records, cfg.Demons*cfg.Players)
	seen := make(map[[2]int]struct{}, limit)
	for len(p.records) < limit {
		key := [2]int{rng.IntN(cfg.Players), rng.IntN(cfg.Demons)}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		req := p.demons[key[1]].Requirement
		p.records = append(p.records, recordSpec{
			player:   key[0],
			demon:    key[1],
			progress: req + rng.IntN(101-req),
		})
	}
	return p
}
