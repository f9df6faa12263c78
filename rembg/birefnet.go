package rembg

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/url"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	nhttp "github.com/chaos-io/rembg-server/util/http"
)

const (
	BiRefNetModel = "BiRefNet"

	uploadPath  = "api/upload/image"
	promptPath  = "api/prompt"
	historyPath = "api/history/"
	viewPath    = "api/view"

	defaultPollInterval = 500 * time.Millisecond
)

//go:embed workflow.json
var workflowData string

// BiRefNet 走 ComfyUI 的 BiRefNet 工作流做背景分割：
// 上传图片 → 提交 prompt → 轮询 history → 拉取输出图。
// 实例本身无状态，可被多个请求并发复用；并发上限由 Limit 包装控制。
type BiRefNet struct {
	baseURL      string
	cli          nhttp.IClient
	pollInterval time.Duration
}

func NewBiRefNet(baseURL string) *BiRefNet {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &BiRefNet{
		baseURL:      baseURL,
		cli:          nhttp.NewHTTPClient(),
		pollInterval: defaultPollInterval,
	}
}

func (b *BiRefNet) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode input image: %w", err)
	}

	name := ksuid.New().String() + ".png"
	uploaded, err := b.uploadImage(ctx, name, buf.Bytes())
	if err != nil {
		return nil, err
	}

	promptID, err := b.prompt(ctx, uploaded.Name)
	if err != nil {
		return nil, err
	}

	out, err := b.waitForOutput(ctx, promptID)
	if err != nil {
		return nil, err
	}

	return b.fetchImage(ctx, out)
}

type uploadImageResp struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

/*
	curl -X POST "$BASE_URL/api/upload/image" \
	  -F "image=@my_image.png" \
	  -F "type=input" \
	  -F "overwrite=true"
*/
func (b *BiRefNet) uploadImage(ctx context.Context, name string, data []byte) (*uploadImageResp, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}

	_ = writer.WriteField("type", "input")
	_ = writer.WriteField("overwrite", "true")
	_ = writer.Close()

	resp := &uploadImageResp{}
	reqParam := &nhttp.RequestParam{
		RequestURI: b.baseURL + uploadPath,
		Method:     "POST",
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   resp,
	}
	if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	if resp.Name == "" {
		return nil, fmt.Errorf("upload image: empty name in response")
	}

	return resp, nil
}

type promptResp struct {
	PromptID string `json:"prompt_id"`
}

func (b *BiRefNet) prompt(ctx context.Context, imageName string) (string, error) {
	workflow := strings.Replace(workflowData, "MyImage.png", imageName, 1)

	wk := map[string]any{}
	if err := json.Unmarshal([]byte(workflow), &wk); err != nil {
		return "", fmt.Errorf("unmarshal workflow data: %w", err)
	}

	body, err := json.Marshal(map[string]any{"prompt": wk})
	if err != nil {
		return "", fmt.Errorf("marshal workflow data: %w", err)
	}

	resp := &promptResp{}
	reqParam := &nhttp.RequestParam{
		RequestURI: b.baseURL + promptPath,
		Method:     "POST",
		Header:     map[string]string{"Content-Type": "application/json"},
		Body:       body,
		Response:   resp,
	}
	if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return "", fmt.Errorf("submit prompt: %w", err)
	}
	if resp.PromptID == "" {
		return "", fmt.Errorf("submit prompt: empty prompt_id in response")
	}

	return resp.PromptID, nil
}

type historyEntry struct {
	Outputs map[string]struct {
		Images []outputImage `json:"images"`
	} `json:"outputs"`
	Status struct {
		Completed bool   `json:"completed"`
		StatusStr string `json:"status_str"`
	} `json:"status"`
}

type outputImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// waitForOutput 轮询 history 直到工作流完成；取消/超时由 ctx 决定
func (b *BiRefNet) waitForOutput(ctx context.Context, promptID string) (*outputImage, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		history := map[string]historyEntry{}
		reqParam := &nhttp.RequestParam{
			RequestURI: b.baseURL + historyPath + promptID,
			Method:     "GET",
			Response:   &history,
		}
		if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
			return nil, fmt.Errorf("query history: %w", err)
		}

		if entry, ok := history[promptID]; ok && entry.Status.Completed {
			if entry.Status.StatusStr == "error" {
				return nil, fmt.Errorf("workflow %s failed on backend", promptID)
			}
			for _, out := range entry.Outputs {
				for _, img := range out.Images {
					if img.Type == "output" {
						return &img, nil
					}
				}
			}
			return nil, fmt.Errorf("workflow %s completed without output image", promptID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *BiRefNet) fetchImage(ctx context.Context, out *outputImage) (image.Image, error) {
	query := url.Values{}
	query.Set("filename", out.Filename)
	query.Set("subfolder", out.Subfolder)
	query.Set("type", out.Type)

	var data []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: b.baseURL + viewPath + "?" + query.Encode(),
		Method:     "GET",
		Response:   &data,
	}
	if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("fetch output image: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode output image: %w", err)
	}
	return img, nil
}
