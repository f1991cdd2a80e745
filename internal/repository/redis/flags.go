package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/account-auth/internal/core/domain"
)

const (
	defaultFlagPrefix = "flag"

	fieldSetting = "setting"
	fieldData    = "data"
)

// FlagRepository stores feature flags as Redis hashes keyed <prefix>:<tag>.
type FlagRepository struct {
	client *red.Client
	prefix string
}

// NewFlagRepository wires a Redis client into a flag repository.
func NewFlagRepository(client *red.Client, keyPrefix string) *FlagRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultFlagPrefix
	}

	return &FlagRepository{client: client, prefix: prefix}
}

// GetFlag returns the flag or nil when the hash does not exist.
func (r *FlagRepository) GetFlag(ctx context.Context, tag string) (*domain.Flag, error) {
	key := r.key(tag)
	if key == "" {
		return nil, errors.New("flag tag must not be empty")
	}

	values, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall flag: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	setting, err := strconv.Atoi(values[fieldSetting])
	if err != nil {
		return nil, fmt.Errorf("parse flag %s setting: %w", tag, err)
	}

	return &domain.Flag{
		Tag:     tag,
		Setting: setting,
		Data:    values[fieldData],
	}, nil
}

// SetFlag writes the flag hash.
func (r *FlagRepository) SetFlag(ctx context.Context, flag domain.Flag) error {
	key := r.key(flag.Tag)
	if key == "" {
		return errors.New("flag tag must not be empty")
	}

	if err := r.client.HSet(ctx, key, fieldSetting, flag.Setting, fieldData, flag.Data).Err(); err != nil {
		return fmt.Errorf("redis hset flag: %w", err)
	}
	return nil
}

// DeleteFlag removes the flag so it falls back to its default.
func (r *FlagRepository) DeleteFlag(ctx context.Context, tag string) error {
	key := r.key(tag)
	if key == "" {
		return errors.New("flag tag must not be empty")
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del flag: %w", err)
	}
	return nil
}

func (r *FlagRepository) key(tag string) string {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" {
		return ""
	}
	return r.prefix + ":" + trimmed
}
