package model

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Loader 模型工件加载器接口
// 支持从不同来源读取工件（本地文件、HTTP 接口、S3 兼容存储等）
type Loader interface {
	// Load 读取工件原始内容
	// source 是数据源标识（文件路径、URL、S3 key 等）
	Load(ctx context.Context, source string) ([]byte, error)
}

// FileLoader 本地文件工件加载器
type FileLoader struct{}

// NewFileLoader 创建本地文件工件加载器
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load 从本地文件读取工件
func (l *FileLoader) Load(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("读取模型工件失败: %w", err)
	}
	return data, nil
}

// HTTPLoader HTTP 接口工件加载器
type HTTPLoader struct {
	client *http.Client
}

// NewHTTPLoader 创建 HTTP 接口工件加载器
//
// 用法：
//
//	loader := model.NewHTTPLoader(5 * time.Second)
//	bundle, err := model.LoadBundle(ctx, loader, "http://models.internal/fraud/v3/bundle.json")
func NewHTTPLoader(timeout time.Duration) *HTTPLoader {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLoader{client: &http.Client{Timeout: timeout}}
}

// Load 从 HTTP 接口读取工件
func (l *HTTPLoader) Load(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("HTTP 请求失败: status=%d, body=%s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	return data, nil
}

// S3Client S3 兼容协议客户端接口（不直接依赖具体 SDK，支持依赖注入）
// S3 兼容协议支持 AWS S3、阿里云 OSS、腾讯云 COS、MinIO 等
type S3Client interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// S3Loader S3 兼容协议工件加载器
type S3Loader struct {
	client S3Client
	bucket string
}

// NewS3Loader 创建 S3 兼容协议工件加载器
func NewS3Loader(client S3Client, bucket string) *S3Loader {
	return &S3Loader{client: client, bucket: bucket}
}

// Load 从 S3 兼容存储读取工件
func (l *S3Loader) Load(ctx context.Context, key string) ([]byte, error) {
	if l.client == nil {
		return nil, fmt.Errorf("S3 客户端未设置")
	}

	reader, err := l.client.GetObject(ctx, l.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("从 S3 兼容存储获取对象失败: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("读取 S3 兼容存储对象失败: %w", err)
	}
	return data, nil
}
