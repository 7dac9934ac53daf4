// Package scorecache keeps live set scores in Redis so viewers can follow a
// match before the set is registered durably.
package scorecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shuttlecourt/league/internal/bracket"
)

const (
	InProgressTTL = time.Hour
	scanBatch     = 100
)

// InProgressSet is the snapshot of a set being played.
type InProgressSet struct {
	LeagueID       uuid.UUID         `json:"leagueId"`
	MatchID        uuid.UUID         `json:"matchId"`
	MatchType      bracket.MatchType `json:"matchType"`
	RoundNumber    int               `json:"roundNumber"`
	SetIndex       int               `json:"setIndex"`
	Participant1ID *uuid.UUID        `json:"participant1Id"`
	Participant2ID *uuid.UUID        `json:"participant2Id"`
	Score1         int               `json:"score1"`
	Score2         int               `json:"score2"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func (s InProgressSet) Key() string {
	return InProgressKey(s.LeagueID, s.MatchID, s.SetIndex)
}

func InProgressKey(leagueID, matchID uuid.UUID, setIndex int) string {
	return fmt.Sprintf("IN_PROGRESS:LEAGUE:%s:MATCH:%s:SET:%d", leagueID, matchID, setIndex)
}

func scoreKey(matchType bracket.MatchType, matchID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", matchType, matchID)
}

func FormatScore(score1, score2 int) string {
	return fmt.Sprintf("%d:%d", score1, score2)
}

// ParseScore reads a "s1:s2" value written by FormatScore.
func ParseScore(v string) (int, int, error) {
	left, right, ok := strings.Cut(v, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed score %q", v)
	}
	s1, err := strconv.Atoi(left)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed score %q: %w", v, err)
	}
	s2, err := strconv.Atoi(right)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed score %q: %w", v, err)
	}
	return s1, s2, nil
}

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb, ttl: InProgressTTL}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb), nil
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}

// SetScore records the score of a set in the match's hash. The hash never expires.
func (c *Cache) SetScore(ctx context.Context, matchType bracket.MatchType, matchID uuid.UUID, setIndex, score1, score2 int) error {
	return c.rdb.HSet(ctx, scoreKey(matchType, matchID), strconv.Itoa(setIndex), FormatScore(score1, score2)).Err()
}

func (c *Cache) GetScore(ctx context.Context, matchType bracket.MatchType, matchID uuid.UUID, setIndex int) (string, bool, error) {
	v, err := c.rdb.HGet(ctx, scoreKey(matchType, matchID), strconv.Itoa(setIndex)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *Cache) SaveInProgressSet(ctx context.Context, set InProgressSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, set.Key(), raw, c.ttl).Err()
}

// GetInProgressSets lists the sets currently played in a league. It returns an
// empty slice, never nil, when nothing is in progress.
func (c *Cache) GetInProgressSets(ctx context.Context, leagueID uuid.UUID) ([]InProgressSet, error) {
	pattern := fmt.Sprintf("IN_PROGRESS:LEAGUE:%s:*", leagueID)

	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan in-progress sets: %w", err)
	}

	sets := []InProgressSet{}
	if len(keys) == 0 {
		return sets, nil
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load in-progress sets: %w", err)
	}
	for _, v := range values {
		// Keys may expire between SCAN and MGET.
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var set InProgressSet
		if err := json.Unmarshal([]byte(raw), &set); err != nil {
			return nil, fmt.Errorf("decode in-progress set: %w", err)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func (c *Cache) Evict(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}
