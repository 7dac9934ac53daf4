package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shuttlecourt/league/internal/bracket"
	"github.com/shuttlecourt/league/internal/service"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	service.LeagueInput `yaml:",inline"`
	Participants        []service.ParticipantInput `yaml:"participants"`
	CloseRecruiting     bool                       `yaml:"closeRecruiting"`
}

// seedLeague creates the league described by r and registers its participants.
func seedLeague(ctx context.Context, leagues *service.LeagueService, r io.Reader) (*bracket.League, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}

	league, err := leagues.CreateLeague(ctx, seed.LeagueInput)
	if err != nil {
		return nil, err
	}
	for _, p := range seed.Participants {
		if _, err := leagues.RegisterParticipant(ctx, league.ID, p); err != nil {
			return nil, fmt.Errorf("failed to register %q: %w", p.MemberName, err)
		}
	}
	if seed.CloseRecruiting {
		return leagues.CloseRecruiting(ctx, league.ID)
	}
	return league, nil
}

type bracketDoc struct {
	League   string     `yaml:"league"`
	Status   string     `yaml:"status"`
	Rounds   []roundDoc `yaml:"rounds"`
	Champion string     `yaml:"champion,omitempty"`
}

type roundDoc struct {
	Round   int        `yaml:"round"`
	Matches []matchDoc `yaml:"matches"`
}

type matchDoc struct {
	ID     string   `yaml:"id"`
	Order  int      `yaml:"order"`
	Side1  string   `yaml:"side1,omitempty"`
	Side2  string   `yaml:"side2,omitempty"`
	Status string   `yaml:"status"`
	Bye    bool     `yaml:"bye,omitempty"`
	Sets   []string `yaml:"sets,omitempty"`
	Winner string   `yaml:"winner,omitempty"`
}

func newBracketDoc(data *service.BracketData) bracketDoc {
	doc := bracketDoc{
		League:   data.League.Name,
		Status:   string(data.League.Status),
		Champion: displayName(data, data.Champion),
	}
	for r := 1; r <= data.League.TotalRounds; r++ {
		round := roundDoc{Round: r}
		for _, m := range data.Round(r) {
			md := matchDoc{
				ID:     m.ID.String(),
				Order:  m.MatchOrder,
				Side1:  displayName(data, m.Participant1ID),
				Side2:  displayName(data, m.Participant2ID),
				Status: string(m.Status),
				Bye:    m.IsBye,
				Winner: displayName(data, m.Winner()),
			}
			for _, s := range m.Sets {
				if s.Status == bracket.SetClosed {
					md.Sets = append(md.Sets, fmt.Sprintf("%d-%d", s.Score1, s.Score2))
				}
			}
			round.Matches = append(round.Matches, md)
		}
		doc.Rounds = append(doc.Rounds, round)
	}
	return doc
}

func displayName(data *service.BracketData, id *uuid.UUID) string {
	p := data.Participant(id)
	if p == nil {
		return ""
	}
	if p.PartnerName != nil {
		return strings.Join([]string{p.MemberName, *p.PartnerName}, " / ")
	}
	return p.MemberName
}

func writeBracket(w io.Writer, data *service.BracketData) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newBracketDoc(data)); err != nil {
		return fmt.Errorf("encoding to YAML failed: %w", err)
	}
	return enc.Close()
}
