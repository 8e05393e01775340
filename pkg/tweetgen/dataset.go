// Package tweetgen publishes synthetic tweets drawn from a static dataset.
package tweetgen

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// UserTweets is one entry of the tweets dataset.
type UserTweets struct {
	ID         int64    `json:"id"`
	ScreenName string   `json:"screen_name"`
	Tweets     []string `json:"tweets"`
}

// UserProfile is one entry of the user-profile dataset.
type UserProfile struct {
	ScreenName         string `json:"screen_name"`
	Location           string `json:"location"`
	Verified           bool   `json:"verified"`
	StatusesCount      int64  `json:"statuses_count"`
	TotalRetweetCount  int64  `json:"total_retweet_count"`
	TotalFavoriteCount int64  `json:"total_favorite_count"`
}

// Dataset is the in-memory source the generator samples from.
type Dataset struct {
	Users    []UserTweets
	profiles map[string]UserProfile
	mbti     map[int64]string
}

// NewDataset indexes profiles by screen name.
func NewDataset(users []UserTweets, profiles []UserProfile, mbti map[int64]string) *Dataset {
	d := &Dataset{
		Users:    users,
		profiles: make(map[string]UserProfile, len(profiles)),
		mbti:     mbti,
	}
	for _, p := range profiles {
		d.profiles[p.ScreenName] = p
	}
	if d.mbti == nil {
		d.mbti = map[int64]string{}
	}
	return d
}

// LoadDataset reads the three dataset files.
func LoadDataset(tweetsFile, usersFile, mbtiFile string) (*Dataset, error) {
	var users []UserTweets
	if err := readJSONFile(tweetsFile, &users); err != nil {
		return nil, err
	}
	var profiles []UserProfile
	if err := readJSONFile(usersFile, &profiles); err != nil {
		return nil, err
	}
	f, err := os.Open(mbtiFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open MBTI labels: %w", err)
	}
	defer f.Close()
	mbti, err := ReadMBTILabels(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read MBTI labels from %s: %w", mbtiFile, err)
	}
	return NewDataset(users, profiles, mbti), nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// ReadMBTILabels parses a CSV with a header containing "id" and
// "mbti_personality" columns. Rows with a non-numeric id are skipped.
func ReadMBTILabels(r io.Reader) (map[int64]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}
	idCol, labelCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case "id":
			idCol = i
		case "mbti_personality":
			labelCol = i
		}
	}
	if idCol < 0 || labelCol < 0 {
		return nil, errors.New(`header needs "id" and "mbti_personality" columns`)
	}

	labels := make(map[int64]string)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if idCol >= len(row) || labelCol >= len(row) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(row[idCol]), 10, 64)
		if err != nil {
			continue
		}
		labels[id] = strings.TrimSpace(row[labelCol])
	}
	return labels, nil
}

// Personality returns the MBTI label for a user, or "unknown".
func (d *Dataset) Personality(userID int64) string {
	if label, ok := d.mbti[userID]; ok && label != "" {
		return label
	}
	return "unknown"
}

// Profile looks up the profile for a screen name.
func (d *Dataset) Profile(screenName string) (UserProfile, bool) {
	p, ok := d.profiles[screenName]
	return p, ok
}
