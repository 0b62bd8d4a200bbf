// Package verify 调用外部学生身份核验服务。
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/zeromicro/go-zero/rest/httpc"

	"grant-settlement-sol/internal/pkg/logger"
	"grant-settlement-sol/internal/settlement"
)

const (
	verifyPath     = "/general/easeId/verify"
	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 64 * 1024
)

var ErrEmptyID = errors.New("easelite id is required")

type Student struct {
	EaseliteID string `json:"easeliteId"`
	Name       string `json:"name"`
}

type Option struct {
	Endpoint string        // 例如 https://api.easelite.com
	Timeout  time.Duration // 单次请求超时
}

type Client struct {
	url     string
	timeout time.Duration
}

type verifyRequest struct {
	EaseliteID string `json:"easeliteId"`
}

func NewClient(opt Option) *Client {
	if opt.Timeout <= 0 {
		opt.Timeout = defaultTimeout
	}
	return &Client{
		url:     strings.TrimRight(opt.Endpoint, "/") + verifyPath,
		timeout: opt.Timeout,
	}
}

// Verify 核验学生身份。
// 核验结果为否返回 settlement.ErrVerificationFailed；网络或服务端异常返回 *settlement.NetworkError。
func (c *Client) Verify(ctx context.Context, easeliteID string) (Student, error) {
	easeliteID = strings.TrimSpace(easeliteID)
	if easeliteID == "" {
		return Student{}, fmt.Errorf("%w: %w", settlement.ErrVerificationFailed, ErrEmptyID)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := httpc.Do(ctx, http.MethodPost, c.url, verifyRequest{EaseliteID: easeliteID})
	if err != nil {
		return Student{}, &settlement.NetworkError{Op: "verify", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Student{}, &settlement.NetworkError{Op: "verify", Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return Student{}, &settlement.NetworkError{Op: "verify", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if !gjson.ValidBytes(body) {
		return Student{}, &settlement.NetworkError{Op: "verify", Err: fmt.Errorf("status %d, malformed body", resp.StatusCode)}
	}

	result := gjson.ParseBytes(body)
	if !result.Get("data.success").Bool() {
		logger.Infof("[Verify] easelite id %s rejected, status=%d", easeliteID, resp.StatusCode)
		return Student{}, fmt.Errorf("%w: easelite id %s", settlement.ErrVerificationFailed, easeliteID)
	}

	student := Student{
		EaseliteID: easeliteID,
		Name:       result.Get("data.studentDetails.name").String(),
	}
	if id := result.Get("data.studentDetails.easeliteId").String(); id != "" {
		student.EaseliteID = id
	}
	return student, nil
}
