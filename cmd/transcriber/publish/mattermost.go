package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/chunk"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/retry"
)

const (
	httpRequestTimeout         = 5 * time.Second
	httpUploadTimeout          = 10 * time.Second
	maxUploadRetryAttempts     = 5
	uploadRetryAttemptWaitTime = 5 * time.Second
)

var idRE = regexp.MustCompile(`^[a-z0-9]{26}$`)

type APIClient interface {
	DoAPIRequestBytes(ctx context.Context, method, url string, data []byte, etag string) (*http.Response, error)
	DoAPIRequestReader(ctx context.Context, method, url string, data io.Reader, headers map[string]string) (*http.Response, error)
}

type MattermostConfig struct {
	SiteURL   string
	AuthToken string
	ChannelID string
}

func (c MattermostConfig) IsEmpty() bool {
	return c == (MattermostConfig{})
}

func (c MattermostConfig) IsValid() error {
	if c.SiteURL == "" {
		return fmt.Errorf("SiteURL cannot be empty")
	}

	u, err := url.Parse(c.SiteURL)
	if err != nil {
		return fmt.Errorf("SiteURL parsing failed: %w", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("SiteURL parsing failed: invalid scheme %q", u.Scheme)
	} else if u.Path != "" {
		return fmt.Errorf("SiteURL parsing failed: invalid path %q", u.Path)
	}

	if c.AuthToken == "" {
		return fmt.Errorf("AuthToken cannot be empty")
	} else if !idRE.MatchString(c.AuthToken) {
		return fmt.Errorf("AuthToken parsing failed")
	}

	if c.ChannelID == "" {
		return fmt.Errorf("ChannelID cannot be empty")
	} else if !idRE.MatchString(c.ChannelID) {
		return fmt.Errorf("ChannelID parsing failed")
	}

	return nil
}

func (c *MattermostConfig) FromEnv() {
	c.SiteURL = os.Getenv("MATTERMOST_SITE_URL")
	c.AuthToken = os.Getenv("MATTERMOST_AUTH_TOKEN")
	c.ChannelID = os.Getenv("MATTERMOST_CHANNEL_ID")
}

func (c MattermostConfig) ToEnv() []string {
	return []string{
		fmt.Sprintf("MATTERMOST_SITE_URL=%s", c.SiteURL),
		fmt.Sprintf("MATTERMOST_AUTH_TOKEN=%s", c.AuthToken),
		fmt.Sprintf("MATTERMOST_CHANNEL_ID=%s", c.ChannelID),
	}
}

func (c MattermostConfig) ToMap() map[string]any {
	return map[string]any{
		"mattermost_site_url":   c.SiteURL,
		"mattermost_auth_token": c.AuthToken,
		"mattermost_channel_id": c.ChannelID,
	}
}

// MattermostSink uploads the transcript renditions to a channel and posts
// them as attachments.
type MattermostSink struct {
	cfg       MattermostConfig
	outputs   OutputOptions
	apiClient APIClient
	apiURL    string
	policy    retry.Policy
}

func NewMattermostSink(cfg MattermostConfig, outputs OutputOptions) (*MattermostSink, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	apiClient := model.NewAPIv4Client(cfg.SiteURL)
	apiClient.SetToken(cfg.AuthToken)

	return &MattermostSink{
		cfg:       cfg,
		outputs:   outputs,
		apiClient: apiClient,
		apiURL:    apiClient.APIURL,
		policy: retry.Policy{
			MaxAttempts: maxUploadRetryAttempts,
			BaseDelay:   uploadRetryAttemptWaitTime,
			Constant:    true,
		},
	}, nil
}

func (s *MattermostSink) Publish(ctx context.Context, res Result) error {
	outs, err := render(res, s.outputs)
	if err != nil {
		return err
	}

	err = retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			slog.Error("publishing to Mattermost failed, retrying", slog.Int("attempt", attempt+1))
		}

		fileIDs := make([]string, 0, len(outs))
		for _, out := range outs {
			fi, err := s.uploadFile(ctx, out)
			if err != nil {
				return err
			}
			fileIDs = append(fileIDs, fi.Id)
		}

		msg := fmt.Sprintf("Interview transcript `%s` is ready (%s).", res.Name, chunk.FormatTS(res.Duration))
		return s.createPost(ctx, msg, fileIDs)
	})
	if err != nil {
		return fmt.Errorf("failed to publish transcript: %w", err)
	}

	return nil
}

// ReportFailure posts a message about a failed job to the channel.
func (s *MattermostSink) ReportFailure(ctx context.Context, jobID string, errMsg string) error {
	msg := fmt.Sprintf("Interview transcription job `%s` failed: %s", jobID, errMsg)
	if err := s.createPost(ctx, msg, nil); err != nil {
		return fmt.Errorf("failed to report job failure: %w", err)
	}
	return nil
}

func (s *MattermostSink) uploadFile(ctx context.Context, out output) (*model.FileInfo, error) {
	us := &model.UploadSession{
		Type:      model.UploadTypeAttachment,
		ChannelId: s.cfg.ChannelID,
		Filename:  out.Filename,
		FileSize:  int64(len(out.Data)),
	}

	payload, err := json.Marshal(us)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	reqCtx, cancelCtx := context.WithTimeout(ctx, httpRequestTimeout)
	defer cancelCtx()
	resp, err := s.apiClient.DoAPIRequestBytes(reqCtx, http.MethodPost, s.apiURL+"/uploads", payload, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&us); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	uploadCtx, cancelUpload := context.WithTimeout(ctx, httpUploadTimeout)
	defer cancelUpload()
	resp, err = s.apiClient.DoAPIRequestReader(uploadCtx, http.MethodPost, s.apiURL+"/uploads/"+us.Id, bytes.NewReader(out.Data), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upload data: %w", err)
	}
	defer resp.Body.Close()

	var fi model.FileInfo
	if err := json.NewDecoder(resp.Body).Decode(&fi); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	return &fi, nil
}

func (s *MattermostSink) createPost(ctx context.Context, msg string, fileIDs []string) error {
	payload, err := json.Marshal(&model.Post{
		ChannelId: s.cfg.ChannelID,
		Message:   msg,
		FileIds:   fileIDs,
	})
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	reqCtx, cancelCtx := context.WithTimeout(ctx, httpRequestTimeout)
	defer cancelCtx()
	resp, err := s.apiClient.DoAPIRequestBytes(reqCtx, http.MethodPost, s.apiURL+"/posts", payload, "")
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	defer resp.Body.Close()

	return nil
}
