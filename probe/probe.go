package probe

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg-server/util"
	nhttp "github.com/chaos-io/rembg-server/util/http"
)

const probeTimeout = 10 * time.Second

// BackendProbe 定时探测分割后端是否可用，只记录日志，不影响请求路径
type BackendProbe struct {
	baseURL  string
	schedule string
	cli      nhttp.IClient
	cron     *cron.Cron
}

func NewBackendProbe(baseURL, schedule string) *BackendProbe {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &BackendProbe{
		baseURL:  baseURL,
		schedule: schedule,
		cli:      nhttp.NewHTTPClient(),
	}
}

func (p *BackendProbe) Start() error {
	p.cron = cron.New()
	if _, err := p.cron.AddFunc(p.schedule, p.check); err != nil {
		return err
	}
	p.cron.Start()
	return nil
}

func (p *BackendProbe) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}

func (p *BackendProbe) check() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	err := p.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: p.baseURL + "system_stats",
		Method:     "GET",
	})
	if err != nil {
		util.Logger.Warn("segmentation backend unreachable",
			zap.String("base_url", p.baseURL),
			zap.Error(err))
		return
	}

	util.Logger.Debug("segmentation backend healthy", zap.String("base_url", p.baseURL))
}
