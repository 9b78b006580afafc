package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	g "github.com/univision/camera-relay/globals"
	"github.com/univision/camera-relay/models"
	"github.com/univision/camera-relay/utils"
)

const listPageSize = 100

// ControlClient - streaming server control API (MediaMTX compatible)
type ControlClient struct {
	conf      *g.MediaMTXSubconfig
	apiClient *resty.Client
	baseURL   string
}

func NewControlClient(conf *g.MediaMTXSubconfig) *ControlClient {
	apiClient := resty.New().SetTimeout(conf.Timeout())
	if conf.User != "" {
		apiClient.SetBasicAuth(conf.User, conf.Password)
	}

	base := strings.TrimRight(conf.URL, "/")
	if base == "" {
		base = "http://" + net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port))
	}
	return &ControlClient{
		conf:      conf,
		apiClient: apiClient,
		baseURL:   base + "/" + strings.Trim(conf.APIPrefix, "/"),
	}
}

// AddPath creates a path configuration. ErrPathExists on conflict.
func (cc *ControlClient) AddPath(ctx context.Context, name string, pathConfig *models.PathConfig) error {
	status, body, err := utils.CallAPIWithBody(ctx, cc.apiClient, http.MethodPost, cc.baseURL+"/config/paths/add/"+name, pathConfig)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrControlUnreachable, err)
	}
	if utils.IsSuccess(status) {
		return nil
	}
	if status == http.StatusConflict {
		return models.ErrPathExists
	}
	return &models.StatusError{Status: status, Body: string(body)}
}

// DeletePath removes a path configuration. ErrPathNotFound when there was nothing to remove.
func (cc *ControlClient) DeletePath(ctx context.Context, name string) error {
	status, body, err := utils.CallAPIWithBody(ctx, cc.apiClient, http.MethodDelete, cc.baseURL+"/config/paths/delete/"+name, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrControlUnreachable, err)
	}
	if utils.IsSuccess(status) {
		return nil
	}
	if status == http.StatusNotFound {
		return models.ErrPathNotFound
	}
	return &models.StatusError{Status: status, Body: string(body)}
}

// GetPath returns runtime information of a single path
func (cc *ControlClient) GetPath(ctx context.Context, name string) (*models.PathItem, error) {
	status, body, err := utils.CallAPIWithBody(ctx, cc.apiClient, http.MethodGet, cc.baseURL+"/paths/get/"+name, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrControlUnreachable, err)
	}
	if status == http.StatusNotFound {
		return nil, models.ErrPathNotFound
	}
	if !utils.IsSuccess(status) {
		return nil, &models.StatusError{Status: status, Body: string(body)}
	}
	var item models.PathItem
	if err := json.Unmarshal(body, &item); err != nil {
		g.Log.Error("failed to unmarshal path item", name, err)
		return nil, err
	}
	return &item, nil
}

// ListPaths returns runtime information of all paths, following every page
func (cc *ControlClient) ListPaths(ctx context.Context) (*models.PathList, error) {
	all := &models.PathList{}
	for page := 0; ; page++ {
		list, err := cc.listPage(ctx, page)
		if err != nil {
			return nil, err
		}
		all.Items = append(all.Items, list.Items...)
		all.ItemCount = list.ItemCount
		all.PageCount = list.PageCount
		if page+1 >= list.PageCount {
			return all, nil
		}
	}
}

func (cc *ControlClient) listPage(ctx context.Context, page int) (*models.PathList, error) {
	endpoint := cc.baseURL + "/paths/list?itemsPerPage=" + strconv.Itoa(listPageSize) + "&page=" + strconv.Itoa(page)
	status, body, err := utils.CallAPIWithBody(ctx, cc.apiClient, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrControlUnreachable, err)
	}
	if !utils.IsSuccess(status) {
		return nil, &models.StatusError{Status: status, Body: string(body)}
	}
	var list models.PathList
	if err := json.Unmarshal(body, &list); err != nil {
		g.Log.Error("failed to unmarshal path list", err)
		return nil, err
	}
	return &list, nil
}

// IsHealthy - short listing call, never fails
func (cc *ControlClient) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, cc.conf.HealthTimeout())
	defer cancel()

	status, _, err := utils.CallAPIWithBody(ctx, cc.apiClient, http.MethodGet, cc.baseURL+"/paths/list", nil)
	if err != nil {
		g.Log.Warn("streaming server health check failed", err)
		return false
	}
	if !utils.IsSuccess(status) {
		g.Log.Warn("streaming server health check returned", status)
		return false
	}
	return true
}
