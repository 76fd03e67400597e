package metadata

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pact/internal/pv"
)

// File names recognised under the metadata root.
const (
	ModuleMetadataFile = "module-metadata.json"
	SiteMetadataFile   = "site-metadata.json"
	setupSuffix        = "modules_setup.csv"
	censoredSuffix     = "censored_days_setup.csv"
)

type window struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Comment string `json:"comment"`
}

func (w window) dateRange() (pv.DateRange, error) {
	start, err := pv.ParseDate(w.Start)
	if err != nil {
		return pv.DateRange{}, fmt.Errorf("window start: %w", err)
	}
	r := pv.DateRange{Start: start, Comment: w.Comment}
	if strings.TrimSpace(w.End) != "" {
		end, err := pv.ParseDate(w.End)
		if err != nil {
			return pv.DateRange{}, fmt.Errorf("window end: %w", err)
		}
		r.End = end
	}
	return r, nil
}

// moduleEntry is one element of module-metadata.json. Junction, power and
// deployment fields are optional extensions over the setup sheet.
type moduleEntry struct {
	ModuleID     string   `json:"module_id"`
	ModuleArea   float64  `json:"module_area"`
	ModuleType   string   `json:"module_type"`
	DaysIndoors  []window `json:"days_indoors"`
	DaysCensored []window `json:"days_censored"`
	Junctions    []string `json:"junctions"`
	RatedPower   float64  `json:"rated_power"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Active       *bool    `json:"active"`
}

// number decodes JSON numbers, numeric strings, and the "null" string that
// marks tracker mounts.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` || raw == `"null"` {
		*n = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", string(data))
	}
	*n = number(v)
	return nil
}

type siteDocument struct {
	Location struct {
		Label          string `json:"label"`
		Latitude       number `json:"latitude"`
		Longitude      number `json:"longitude"`
		Elevation      number `json:"elevation"`
		SurfaceTilt    number `json:"surface_tilt"`
		SurfaceAzimuth number `json:"surface_azimuth"`
	} `json:"location"`
	SnowDays     []string `json:"snow_days"`
	SiteCensored []window `json:"site_censored"`
}

func decodeModules(r io.Reader) ([]moduleEntry, error) {
	var entries []moduleEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func decodeSite(r io.Reader) (siteDocument, error) {
	var doc siteDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return siteDocument{}, err
	}
	return doc, nil
}

// setupRow is one line of the outdoor modules setup sheet.
type setupRow struct {
	ID     string
	Start  pv.Date
	End    pv.Date
	Area   float64
	Active bool
	Type   string
	Site   string
	Notes  string
}

// censorRow is one line of the censored days sheet. ID "site" applies to
// every device deployed during the window.
type censorRow struct {
	ID     string
	Window pv.DateRange
}

func readSheet(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var rows []map[string]string
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseSetup(r io.Reader) ([]setupRow, error) {
	sheet, err := readSheet(r)
	if err != nil {
		return nil, err
	}
	out := make([]setupRow, 0, len(sheet))
	for i, row := range sheet {
		id := pv.CanonicalID(row["pact_id"])
		if id == "" {
			continue
		}
		s := setupRow{
			ID:     id,
			Active: strings.EqualFold(row["active"], "Y"),
			Type:   row["type"],
			Site:   row["site"],
			Notes:  row["notes"],
		}
		if v := row["start_date"]; v != "" {
			if s.Start, err = pv.ParseDate(v); err != nil {
				return nil, fmt.Errorf("row %d (%s): Start_date: %w", i+2, id, err)
			}
		}
		if v := row["end_date"]; v != "" {
			if s.End, err = pv.ParseDate(v); err != nil {
				return nil, fmt.Errorf("row %d (%s): End_date: %w", i+2, id, err)
			}
		}
		if v := row["area"]; v != "" {
			if s.Area, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("row %d (%s): Area: %w", i+2, id, err)
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func parseCensored(r io.Reader) ([]censorRow, error) {
	sheet, err := readSheet(r)
	if err != nil {
		return nil, err
	}
	out := make([]censorRow, 0, len(sheet))
	for i, row := range sheet {
		id := strings.TrimSpace(row["pact_id"])
		if id == "" {
			continue
		}
		w, err := window{Start: row["start"], End: row["end"], Comment: row["comment"]}.dateRange()
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i+2, id, err)
		}
		if !strings.EqualFold(id, SiteID) {
			id = pv.CanonicalID(id)
		} else {
			id = SiteID
		}
		out = append(out, censorRow{ID: id, Window: w})
	}
	return out, nil
}
