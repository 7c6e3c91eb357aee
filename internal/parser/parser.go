package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/warfare-dev/extension/internal/geo"
	"github.com/warfare-dev/extension/internal/util"
	"github.com/warfare-dev/extension/internal/zones"
	"github.com/warfare-dev/extension/pkg/core"
)

// ErrArgCount is returned when a host call has too few arguments.
var ErrArgCount = errors.New("not enough arguments")

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// The host scripting language has no integer type, so numbers may arrive as floats.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// parseIntFromFloat parses a string that may be an integer or float into int64.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

func need(args []string, n int, what string) error {
	if len(args) < n {
		return fmt.Errorf("%s: %w: got %d, want %d", what, ErrArgCount, len(args), n)
	}
	return nil
}

// Parser provides pure []string -> core struct conversion.
// It needs the match's teams to turn team ids into teams.
type Parser struct {
	logger *slog.Logger
	teams  core.TeamProvider
}

// NewParser creates a new parser
func NewParser(logger *slog.Logger, teams core.TeamProvider) *Parser {
	return &Parser{logger: logger, teams: teams}
}

// ParseTeam resolves a team id argument. "0" is NoTeam; an unknown id is an
// error.
func (p *Parser) ParseTeam(s string) (core.Team, error) {
	id, err := parseUintFromFloat(s)
	if err != nil || id > 255 {
		return core.NoTeam, fmt.Errorf("invalid team id %q", s)
	}
	if id == 0 {
		return core.NoTeam, nil
	}
	t := core.TeamByID(p.teams, uint8(id))
	if !t.IsValid() {
		return core.NoTeam, fmt.Errorf("unknown team id %d", id)
	}
	return t, nil
}

// ParsePlayerID parses a player id argument.
func (p *Parser) ParsePlayerID(s string) (core.PlayerID, error) {
	id, err := parseUintFromFloat(s)
	if err != nil {
		return 0, fmt.Errorf("invalid player id %q: %w", s, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("invalid player id %q", s)
	}
	return core.PlayerID(id), nil
}

// ParsePlayer parses [id, name, team, "[x,y,z]", alive].
func (p *Parser) ParsePlayer(data []string) (core.Player, error) {
	var player core.Player
	if err := need(data, 5, "player"); err != nil {
		return player, err
	}
	data = util.CleanArgs(data)

	id, err := p.ParsePlayerID(data[0])
	if err != nil {
		return player, err
	}
	player.ID = id
	player.Name = data[1]

	player.Team, err = p.ParseTeam(data[2])
	if err != nil {
		return player, fmt.Errorf("player %d: %w", id, err)
	}

	pos, err := geo.Position3DFromString(strings.Trim(data[3], "[]"))
	if err != nil {
		return player, fmt.Errorf("player %d position %q: %w", id, data[3], err)
	}
	player.Position = pos

	alive, ok := util.ParseBool(data[4])
	if !ok {
		return player, fmt.Errorf("player %d: invalid alive flag %q", id, data[4])
	}
	player.Alive = alive

	return player, nil
}

// ParseQuickCapture parses [flag, team].
func (p *Parser) ParseQuickCapture(data []string) (string, core.Team, error) {
	if err := need(data, 2, "quick capture"); err != nil {
		return "", core.NoTeam, err
	}
	data = util.CleanArgs(data)

	team, err := p.ParseTeam(data[1])
	if err != nil {
		return "", core.NoTeam, err
	}
	if !team.IsValid() {
		return "", core.NoTeam, fmt.Errorf("quick capture of %q needs a team", data[0])
	}
	return data[0], team, nil
}

// ParseViewer parses the optional team of a flag list request. A missing
// argument means no team.
func (p *Parser) ParseViewer(data []string) (core.Team, error) {
	if len(data) == 0 {
		return core.NoTeam, nil
	}
	return p.ParseTeam(util.CleanArgs(data)[0])
}

// ParseZones decodes one zone definition per argument and builds each.
func (p *Parser) ParseZones(data []string) ([]zones.Zone, error) {
	if err := need(data, 1, "zones"); err != nil {
		return nil, err
	}

	out := make([]zones.Zone, 0, len(data))
	for i, raw := range data {
		// host strings arrive quoted with inner quotes doubled
		raw = strings.TrimSpace(raw)
		if len(raw) > 1 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
			raw = util.FixEscapeQuotes(raw[1 : len(raw)-1])
		}

		var z zones.Zone
		if err := json.Unmarshal([]byte(raw), &z); err != nil {
			return nil, fmt.Errorf("zone %d: %w", i, err)
		}
		if err := z.Build(); err != nil {
			return nil, fmt.Errorf("zone %d: %w", i, err)
		}
		out = append(out, z)
	}

	p.logger.Debug("Parsed zone definitions", "count", len(out))
	return out, nil
}

// ParseLog parses [source, level, message] from a host log call.
func (p *Parser) ParseLog(data []string) (source, level, message string, err error) {
	if err := need(data, 3, "log"); err != nil {
		return "", "", "", err
	}
	data = util.CleanArgs(data)
	return data[0], data[1], strings.Join(data[2:], "|"), nil
}
