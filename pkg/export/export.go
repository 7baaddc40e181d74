// Package export serializes collected records to CSV and JSON. Column
// selection, naming, and order come from the field registry, and the CSV
// header uses display names so an exported table can be read back in.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nettally/nettally/pkg/fields"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/util"
)

// Exporter writes collected data to files under Dir. It satisfies the
// pipeline executor's export contract.
type Exporter struct {
	Registry fields.Registry
	Dir      string
}

// New builds an exporter with the default registry.
func New(dir string) *Exporter {
	return &Exporter{Registry: fields.Default(), Dir: dir}
}

// kindForTarget maps collection targets to registry kinds.
func kindForTarget(target string) string {
	switch target {
	case "device_info", "devices":
		return "device"
	case "interfaces":
		return "interface"
	case "mac_table":
		return "mac"
	case "neighbors", "lldp", "cdp":
		return "neighbor"
	case "inventory":
		return "inventory"
	case "ip_addresses":
		return "ip"
	}
	return ""
}

// Export writes one target's data. Options: "format" (csv or json, default
// csv), "path" (overrides the derived file name). Config backups are written
// one file per device instead of a table.
func (e *Exporter) Export(target string, data interface{}, options map[string]interface{}) error {
	format := optString(options, "format", "csv")

	if backups, ok := data.([]model.ConfigBackup); ok {
		return e.exportConfigs(backups)
	}

	path := optString(options, "path", "")
	if path == "" {
		path = filepath.Join(e.Dir, target+"."+format)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case "json":
		return WriteJSON(f, data)
	case "csv":
		kind := kindForTarget(target)
		if kind == "" {
			return fmt.Errorf("%w: no tabular form for target %q", util.ErrValidationFailed, target)
		}
		return e.WriteCSV(f, kind, Rows(data))
	}
	return fmt.Errorf("%w: export format %q", util.ErrValidationFailed, format)
}

func (e *Exporter) exportConfigs(backups []model.ConfigBackup) error {
	dir := filepath.Join(e.Dir, "configs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, b := range backups {
		name := b.Device
		if name == "" {
			name = b.Host
		}
		path := filepath.Join(dir, util.Slugify(name)+".cfg")
		if err := os.WriteFile(path, []byte(b.Config), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON dumps data as indented JSON.
func WriteJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// WriteCSV writes rows with the registry's enabled columns, display-named
// and ordered.
func (e *Exporter) WriteCSV(w io.Writer, kind string, rows []map[string]string) error {
	cols := e.Registry.Columns(kind)
	if len(cols) == 0 {
		return fmt.Errorf("%w: unknown entity kind %q", util.ErrValidationFailed, kind)
	}

	cw := csv.NewWriter(w)
	header := make([]string, len(cols))
	for i, col := range cols {
		header[i] = e.Registry.DisplayName(kind, col)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			record[i] = row[col]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a previously exported table back into field-keyed rows,
// reverse-mapping display names case-insensitively. Columns that are not
// enabled registry fields are ignored.
func (e *Exporter) ReadCSV(r io.Reader, kind string) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	fieldByCol := make(map[int]string)
	for i, display := range header {
		if field, ok := e.Registry.Reverse(kind, display); ok {
			fieldByCol[i] = field
		}
	}
	if len(fieldByCol) == 0 {
		return nil, fmt.Errorf("%w: no recognizable %s columns", util.ErrValidationFailed, kind)
	}

	var rows []map[string]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string)
		for i, field := range fieldByCol {
			if i < len(record) {
				row[field] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Rows flattens typed records into string-keyed rows matching the registry's
// internal field names.
func Rows(data interface{}) []map[string]string {
	switch recs := data.(type) {
	case []model.DeviceInfo:
		return mapRows(recs, deviceRow)
	case []model.InterfaceRecord:
		return mapRows(recs, interfaceRow)
	case []model.MACEntry:
		return mapRows(recs, macRow)
	case []model.Neighbor:
		return mapRows(recs, neighborRow)
	case []model.InventoryItem:
		return mapRows(recs, inventoryRow)
	case []model.IPBinding:
		return mapRows(recs, ipRow)
	}
	return nil
}

func mapRows[T any](recs []T, fn func(T) map[string]string) []map[string]string {
	rows := make([]map[string]string, len(recs))
	for i, rec := range recs {
		rows[i] = fn(rec)
	}
	return rows
}

func deviceRow(d model.DeviceInfo) map[string]string {
	return map[string]string{
		"hostname":   d.Hostname,
		"host":       d.Host,
		"platform":   d.Platform,
		"model":      d.Model,
		"serial":     d.Serial,
		"os_version": d.OSVersion,
		"uptime":     d.Uptime,
	}
}

func interfaceRow(r model.InterfaceRecord) map[string]string {
	row := map[string]string{
		"device":      r.Device,
		"name":        r.Name,
		"description": r.Description,
		"status":      string(r.Status),
		"enabled":     strconv.FormatBool(r.Enabled),
		"duplex":      r.Duplex,
		"mode":        string(r.Mode),
		"lag_parent":  r.LAGParent,
		"mac":         r.MAC,
	}
	if r.MTU > 0 {
		row["mtu"] = strconv.Itoa(r.MTU)
	}
	if r.Speed > 0 {
		row["speed"] = strconv.Itoa(r.Speed)
	}
	if r.AccessVLAN > 0 {
		row["access_vlan"] = strconv.Itoa(r.AccessVLAN)
	}
	if len(r.AllowedVLANs) > 0 {
		parts := make([]string, len(r.AllowedVLANs))
		for i, v := range r.AllowedVLANs {
			parts[i] = strconv.Itoa(v)
		}
		row["allowed_vlans"] = joinComma(parts)
	}
	return row
}

func macRow(m model.MACEntry) map[string]string {
	display := m.Display
	if display == "" {
		display = m.MAC
	}
	row := map[string]string{
		"device":      m.Device,
		"interface":   m.Interface,
		"mac_display": display,
		"type":        string(m.Type),
		"port_status": string(m.PortStatus),
		"description": m.Description,
	}
	if m.VLAN > 0 {
		row["vlan"] = strconv.Itoa(m.VLAN)
	}
	return row
}

func neighborRow(n model.Neighbor) map[string]string {
	return map[string]string{
		"local_device":    n.LocalDevice,
		"local_interface": n.LocalInterface,
		"remote_hostname": n.RemoteHostname,
		"remote_port":     n.RemotePort,
		"remote_ip":       n.RemoteIP,
		"remote_mac":      n.RemoteMAC,
		"remote_platform": n.RemotePlatform,
		"protocol":        string(n.Protocol),
		"neighbor_type":   string(n.Type),
	}
}

func inventoryRow(i model.InventoryItem) map[string]string {
	return map[string]string{
		"device":         i.Device,
		"component_type": string(i.Type),
		"name":           i.Name,
		"part_id":        i.PartID,
		"serial":         i.Serial,
		"description":    i.Description,
	}
}

func ipRow(b model.IPBinding) map[string]string {
	return map[string]string{
		"device":     b.Device,
		"interface":  b.Interface,
		"address":    b.Address,
		"is_primary": strconv.FormatBool(b.IsPrimary),
	}
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

func optString(options map[string]interface{}, key, def string) string {
	if v, ok := options[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}
