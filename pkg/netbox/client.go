package netbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/util"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 200
	maxRetries      = 3
	retryDelay      = 1 * time.Second
)

// Client is the HTTP implementation of API. All requests carry token auth;
// reads are retried on transient failure, writes are attempted once (the
// reconciler owns the batch-then-per-item fallback).
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	pageSize int
}

var _ API = (*Client)(nil)

// NewClient builds a client from the inventory endpoint config.
func NewClient(cfg model.InventoryConfig) *Client {
	return &Client{
		baseURL:  trimSlash(cfg.URL),
		token:    cfg.Token,
		http:     &http.Client{Timeout: defaultTimeout},
		pageSize: defaultPageSize,
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// statusError carries the remote's response for non-2xx replies.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remote inventory returned %d: %s", e.Status, util.TruncateString(e.Body, 200))
}

func (e *statusError) transient() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// listEnvelope is the paginated collection reply.
type listEnvelope struct {
	Count   int             `json:"count"`
	Next    string          `json:"next"`
	Results json.RawMessage `json:"results"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	attempt := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Token "+c.token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			serr := &statusError{Status: resp.StatusCode, Body: string(raw)}
			if serr.transient() && method == http.MethodGet {
				return serr
			}
			return backoff.Permanent(serr)
		}
		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return backoff.Permanent(fmt.Errorf("decode %s %s: %w", method, path, err))
			}
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), maxRetries),
		ctx)
	if method != http.MethodGet {
		// Writes are not safely repeatable.
		policy = backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	return backoff.Retry(attempt, policy)
}

// list walks a paginated collection, decoding each page's results into dst
// via the append callback.
func (c *Client) list(ctx context.Context, path string, query url.Values, appendPage func(json.RawMessage) error) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("limit", strconv.Itoa(c.pageSize))
	offset := 0
	for {
		query.Set("offset", strconv.Itoa(offset))
		var env listEnvelope
		if err := c.do(ctx, http.MethodGet, path, query, nil, &env); err != nil {
			return err
		}
		if len(env.Results) > 0 {
			if err := appendPage(env.Results); err != nil {
				return err
			}
		}
		offset += c.pageSize
		if env.Next == "" || offset >= env.Count {
			return nil
		}
	}
}

// getOne fetches a filtered collection and returns its sole element, or nil
// when the filter matches nothing.
func getOne[T any](ctx context.Context, c *Client, path string, query url.Values) (*T, error) {
	var page []T
	err := c.list(ctx, path, query, func(raw json.RawMessage) error {
		return json.Unmarshal(raw, &page)
	})
	if err != nil {
		return nil, err
	}
	if len(page) == 0 {
		return nil, nil
	}
	if len(page) > 1 {
		util.Logger.Warnf("lookup %s %v matched %d objects, using first", path, query, len(page))
	}
	return &page[0], nil
}

func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var all []T
	err := c.list(ctx, path, query, func(raw json.RawMessage) error {
		var page []T
		if err := json.Unmarshal(raw, &page); err != nil {
			return err
		}
		all = append(all, page...)
		return nil
	})
	return all, err
}

// idRef is the bulk-delete payload element.
type idRef struct {
	ID int `json:"id"`
}

func idRefs(ids []int) []idRef {
	refs := make([]idRef, len(ids))
	for i, id := range ids {
		refs[i] = idRef{ID: id}
	}
	return refs
}

// ----------------------------------------------------------------------------
// Devices
// ----------------------------------------------------------------------------

const devicesPath = "/api/dcim/devices/"

func (c *Client) GetDeviceByName(ctx context.Context, name string) (*Device, error) {
	return getOne[Device](ctx, c, devicesPath, url.Values{"name": {name}})
}

func (c *Client) GetDeviceByIP(ctx context.Context, ip string) (*Device, error) {
	return getOne[Device](ctx, c, devicesPath, url.Values{"primary_ip": {ip}})
}

func (c *Client) GetDeviceByMAC(ctx context.Context, mac string) (*Device, error) {
	return getOne[Device](ctx, c, devicesPath, url.Values{"mac_address": {mac}})
}

func (c *Client) ListDevices(ctx context.Context, tenant string) ([]Device, error) {
	query := url.Values{}
	if tenant != "" {
		query.Set("tenant", tenant)
	}
	return listAll[Device](ctx, c, devicesPath, query)
}

func (c *Client) CreateDevices(ctx context.Context, devs []Device) ([]Device, error) {
	var created []Device
	if err := c.do(ctx, http.MethodPost, devicesPath, nil, devs, &created); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) CreateDevice(ctx context.Context, dev Device) (*Device, error) {
	var created Device
	if err := c.do(ctx, http.MethodPost, devicesPath, nil, dev, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateDevices(ctx context.Context, devs []Device) error {
	return c.do(ctx, http.MethodPatch, devicesPath, nil, devs, nil)
}

func (c *Client) UpdateDevice(ctx context.Context, dev Device) error {
	return c.do(ctx, http.MethodPatch, devicesPath+strconv.Itoa(dev.ID)+"/", nil, dev, nil)
}

func (c *Client) DeleteDevices(ctx context.Context, ids []int) error {
	return c.do(ctx, http.MethodDelete, devicesPath, nil, idRefs(ids), nil)
}

func (c *Client) DeleteDevice(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, devicesPath+strconv.Itoa(id)+"/", nil, nil, nil)
}

// ----------------------------------------------------------------------------
// Dependencies
// ----------------------------------------------------------------------------

var dependencyPaths = map[DependencyKind]string{
	KindManufacturer: "/api/dcim/manufacturers/",
	KindDeviceType:   "/api/dcim/device-types/",
	KindSite:         "/api/dcim/sites/",
	KindRole:         "/api/dcim/device-roles/",
	KindTenant:       "/api/tenancy/tenants/",
}

// GetOrCreateDependency resolves one of the supporting objects by name,
// creating it on first sight. Device types hang off a manufacturer, passed
// as parentID; other kinds ignore it.
func (c *Client) GetOrCreateDependency(ctx context.Context, kind DependencyKind, name string, parentID int) (*Ref, error) {
	path, ok := dependencyPaths[kind]
	if !ok {
		return nil, fmt.Errorf("%w: dependency kind %q", util.ErrValidationFailed, kind)
	}

	query := url.Values{}
	if kind == KindDeviceType {
		query.Set("model", name)
		if parentID > 0 {
			query.Set("manufacturer_id", strconv.Itoa(parentID))
		}
	} else {
		query.Set("name", name)
	}
	existing, err := getOne[Ref](ctx, c, path, query)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	body := map[string]interface{}{"slug": util.Slugify(name)}
	if kind == KindDeviceType {
		body["model"] = name
		body["manufacturer"] = parentID
	} else {
		body["name"] = name
	}
	var created Ref
	if err := c.do(ctx, http.MethodPost, path, nil, body, &created); err != nil {
		return nil, err
	}
	util.Logger.Debugf("created %s %q (id %d)", kind, name, created.ID)
	return &created, nil
}

// ----------------------------------------------------------------------------
// Interfaces
// ----------------------------------------------------------------------------

const (
	interfacesPath = "/api/dcim/interfaces/"
	macsPath       = "/api/dcim/mac-addresses/"
)

func (c *Client) ListInterfaces(ctx context.Context, deviceID int) ([]Interface, error) {
	return listAll[Interface](ctx, c, interfacesPath, url.Values{"device_id": {strconv.Itoa(deviceID)}})
}

func (c *Client) CreateInterfaces(ctx context.Context, ifaces []Interface) ([]Interface, error) {
	var created []Interface
	if err := c.do(ctx, http.MethodPost, interfacesPath, nil, ifaces, &created); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) CreateInterface(ctx context.Context, iface Interface) (*Interface, error) {
	var created Interface
	if err := c.do(ctx, http.MethodPost, interfacesPath, nil, iface, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateInterfaces(ctx context.Context, ifaces []Interface) error {
	return c.do(ctx, http.MethodPatch, interfacesPath, nil, ifaces, nil)
}

func (c *Client) UpdateInterface(ctx context.Context, iface Interface) error {
	return c.do(ctx, http.MethodPatch, interfacesPath+strconv.Itoa(iface.ID)+"/", nil, iface, nil)
}

func (c *Client) DeleteInterfaces(ctx context.Context, ids []int) error {
	return c.do(ctx, http.MethodDelete, interfacesPath, nil, idRefs(ids), nil)
}

func (c *Client) DeleteInterface(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, interfacesPath+strconv.Itoa(id)+"/", nil, nil, nil)
}

func (c *Client) AssignMAC(ctx context.Context, interfaceID int, mac string) error {
	body := map[string]interface{}{
		"mac_address":          mac,
		"assigned_object_type": "dcim.interface",
		"assigned_object_id":   interfaceID,
	}
	return c.do(ctx, http.MethodPost, macsPath, nil, body, nil)
}

// ----------------------------------------------------------------------------
// IP addresses
// ----------------------------------------------------------------------------

const ipsPath = "/api/ipam/ip-addresses/"

func (c *Client) ListIPAddresses(ctx context.Context, deviceID int) ([]IPAddress, error) {
	return listAll[IPAddress](ctx, c, ipsPath, url.Values{"device_id": {strconv.Itoa(deviceID)}})
}

func (c *Client) CreateIPAddresses(ctx context.Context, ips []IPAddress) ([]IPAddress, error) {
	var created []IPAddress
	if err := c.do(ctx, http.MethodPost, ipsPath, nil, ips, &created); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) CreateIPAddress(ctx context.Context, ip IPAddress) (*IPAddress, error) {
	var created IPAddress
	if err := c.do(ctx, http.MethodPost, ipsPath, nil, ip, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateIPAddress(ctx context.Context, ip IPAddress) error {
	return c.do(ctx, http.MethodPatch, ipsPath+strconv.Itoa(ip.ID)+"/", nil, ip, nil)
}

func (c *Client) DeleteIPAddresses(ctx context.Context, ids []int) error {
	return c.do(ctx, http.MethodDelete, ipsPath, nil, idRefs(ids), nil)
}

func (c *Client) DeleteIPAddress(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, ipsPath+strconv.Itoa(id)+"/", nil, nil, nil)
}

// ----------------------------------------------------------------------------
// VLANs
// ----------------------------------------------------------------------------

const vlansPath = "/api/ipam/vlans/"

func (c *Client) ListVLANs(ctx context.Context, siteID int) ([]VLAN, error) {
	query := url.Values{}
	if siteID > 0 {
		query.Set("site_id", strconv.Itoa(siteID))
	}
	return listAll[VLAN](ctx, c, vlansPath, query)
}

func (c *Client) CreateVLAN(ctx context.Context, vlan VLAN) (*VLAN, error) {
	var created VLAN
	if err := c.do(ctx, http.MethodPost, vlansPath, nil, vlan, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ----------------------------------------------------------------------------
// Cables
// ----------------------------------------------------------------------------

const cablesPath = "/api/dcim/cables/"

func (c *Client) ListCables(ctx context.Context, deviceIDs []int) ([]Cable, error) {
	query := url.Values{}
	for _, id := range deviceIDs {
		query.Add("device_id", strconv.Itoa(id))
	}
	return listAll[Cable](ctx, c, cablesPath, query)
}

func (c *Client) CreateCable(ctx context.Context, cable Cable) (*Cable, error) {
	var created Cable
	if err := c.do(ctx, http.MethodPost, cablesPath, nil, cable, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) DeleteCable(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, cablesPath+strconv.Itoa(id)+"/", nil, nil, nil)
}

// ----------------------------------------------------------------------------
// Inventory items
// ----------------------------------------------------------------------------

const inventoryPath = "/api/dcim/inventory-items/"

func (c *Client) ListInventoryItems(ctx context.Context, deviceID int) ([]InventoryItem, error) {
	return listAll[InventoryItem](ctx, c, inventoryPath, url.Values{"device_id": {strconv.Itoa(deviceID)}})
}

func (c *Client) CreateInventoryItems(ctx context.Context, items []InventoryItem) ([]InventoryItem, error) {
	var created []InventoryItem
	if err := c.do(ctx, http.MethodPost, inventoryPath, nil, items, &created); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) CreateInventoryItem(ctx context.Context, item InventoryItem) (*InventoryItem, error) {
	var created InventoryItem
	if err := c.do(ctx, http.MethodPost, inventoryPath, nil, item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateInventoryItems(ctx context.Context, items []InventoryItem) error {
	return c.do(ctx, http.MethodPatch, inventoryPath, nil, items, nil)
}

func (c *Client) UpdateInventoryItem(ctx context.Context, item InventoryItem) error {
	return c.do(ctx, http.MethodPatch, inventoryPath+strconv.Itoa(item.ID)+"/", nil, item, nil)
}

func (c *Client) DeleteInventoryItems(ctx context.Context, ids []int) error {
	return c.do(ctx, http.MethodDelete, inventoryPath, nil, idRefs(ids), nil)
}

func (c *Client) DeleteInventoryItem(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, inventoryPath+strconv.Itoa(id)+"/", nil, nil, nil)
}
