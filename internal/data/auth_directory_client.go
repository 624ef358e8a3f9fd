package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"xinyuan_tech/premium-service/internal/biz"
	"xinyuan_tech/premium-service/internal/conf"
)

// authDirectoryClient 认证服务目录客户端实现
// 通过服务端特权凭证调用认证服务的 admin API 查询用户资料
type authDirectoryClient struct {
	baseURL        string
	serviceRoleKey string
	httpClient     *http.Client
}

// NewAuthDirectoryClient 创建认证服务目录客户端
func NewAuthDirectoryClient(c *conf.Bootstrap) (biz.AuthDirectoryClient, error) {
	url := ""
	key := ""
	if c != nil && c.Client != nil && c.Client.AuthService != nil {
		url = c.Client.AuthService.URL
		key = c.Client.AuthService.ServiceRoleKey
	}
	if url == "" || key == "" {
		// 如果没有配置服务端凭证，返回空实现（优雅降级）
		return &emptyAuthDirectoryClient{}, nil
	}
	return &authDirectoryClient{
		baseURL:        strings.TrimRight(url, "/"),
		serviceRoleKey: key,
		httpClient:     &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// GetUserEmail 查询用户邮箱
func (c *authDirectoryClient) GetUserEmail(ctx context.Context, uid string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/admin/users/"+uid, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceRoleKey)
	req.Header.Set("apikey", c.serviceRoleKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get user from auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth service returned status %d for user %s", resp.StatusCode, uid)
	}

	var user struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("failed to decode auth service response: %w", err)
	}
	return user.Email, nil
}

// emptyAuthDirectoryClient 空的认证服务目录客户端实现（优雅降级）
type emptyAuthDirectoryClient struct{}

func (e *emptyAuthDirectoryClient) GetUserEmail(ctx context.Context, uid string) (string, error) {
	return "", nil
}
