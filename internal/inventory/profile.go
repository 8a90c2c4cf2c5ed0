package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// ProfileSource enumerates extensions unpacked in Chromium profile directories:
//
//	<profile>/Extensions/<extension id>/<version>/manifest.json
//
// Profiles may be glob patterns (doublestar syntax) and may start with "~/".
type ProfileSource struct {
	Profiles []string
	logger   *zap.Logger
}

// NewProfileSource creates a ProfileSource over the given profile patterns.
func NewProfileSource(profiles []string, logger *zap.Logger) *ProfileSource {
	return &ProfileSource{Profiles: profiles, logger: logger}
}

// manifest holds the subset of manifest.json the inventory needs.
type manifest struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	DefaultLocale   string            `json:"default_locale"`
	ManifestVersion int               `json:"manifest_version"`
	Permissions     []json.RawMessage `json:"permissions"`
	HostPermissions []string          `json:"host_permissions"`
	Icons           map[string]string `json:"icons"`
}

// ListInstalled implements Source. When no profile directory exists at all
// the capability is reported as unavailable.
func (s *ProfileSource) ListInstalled(ctx context.Context) ([]Record, error) {
	dirs, err := s.resolveProfiles()
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, &CapabilityError{Reason: "no browser profile found at " + strings.Join(s.Profiles, ", ")}
	}

	seen := make(map[string]bool)
	var records []Record
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := s.readProfile(dir)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			// The same extension synced into several profiles is listed once.
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			records = append(records, r)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Name != records[j].Name {
			return records[i].Name < records[j].Name
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// resolveProfiles expands every profile pattern into existing directories.
func (s *ProfileSource) resolveProfiles() ([]string, error) {
	var dirs []string
	for _, p := range s.Profiles {
		pattern, err := expandHome(p)
		if err != nil {
			return nil, err
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad profile pattern %q: %w", p, err)
		}
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.IsDir() {
				dirs = append(dirs, m)
			}
		}
	}
	return dirs, nil
}

// ExtensionDirs returns the Extensions directory of every profile that
// currently exists, whether or not it has extensions installed yet.
func (s *ProfileSource) ExtensionDirs() ([]string, error) {
	dirs, err := s.resolveProfiles()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, filepath.Join(d, "Extensions"))
	}
	return out, nil
}

func (s *ProfileSource) readProfile(dir string) ([]Record, error) {
	extRoot := filepath.Join(dir, "Extensions")
	entries, err := os.ReadDir(extRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// A profile without extensions is not an error.
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", extRoot, err)
	}

	var records []Record
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "Temp" {
			continue
		}
		id := e.Name()
		versionDir, err := latestVersionDir(filepath.Join(extRoot, id))
		if err != nil || versionDir == "" {
			s.logger.Debug("inventory: no version directory", zap.String("id", id), zap.Error(err))
			continue
		}
		rec, err := readManifest(id, versionDir)
		if err != nil {
			s.logger.Warn("inventory: unreadable manifest",
				zap.String("id", id),
				zap.String("dir", versionDir),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// readManifest converts one unpacked extension into a Record.
func readManifest(id, dir string) (Record, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return Record{}, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Record{}, fmt.Errorf("parse manifest: %w", err)
	}

	rec := Record{
		ID:              id,
		Name:            localizedName(dir, m.Name, m.DefaultLocale),
		Version:         m.Version,
		Permissions:     []string{},
		HostPermissions: []string{},
		Icons:           iconsFor(id, m.Icons),
	}
	if rec.Name == "" {
		rec.Name = id
	}

	for _, raw := range m.Permissions {
		for _, p := range permissionNames(raw) {
			// Manifest V2 lists host patterns alongside API permissions.
			if isHostPattern(p) {
				rec.HostPermissions = appendUnique(rec.HostPermissions, p)
			} else {
				rec.Permissions = append(rec.Permissions, p)
			}
		}
	}
	for _, h := range m.HostPermissions {
		rec.HostPermissions = appendUnique(rec.HostPermissions, h)
	}
	return rec, nil
}

// permissionNames accepts both plain strings and the object form
// ({"socket": [...]}) that some manifests use.
func permissionNames(raw json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		names := make([]string, 0, len(obj))
		for k := range obj {
			names = append(names, k)
		}
		sort.Strings(names)
		return names
	}
	return nil
}

func isHostPattern(p string) bool {
	return p == "<all_urls>" || strings.Contains(p, "://")
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// localizedName resolves "__MSG_key__" names through _locales/<locale>/messages.json.
// Message keys are case-insensitive. Unresolvable names are returned unchanged.
func localizedName(dir, name, locale string) string {
	if !strings.HasPrefix(name, "__MSG_") || !strings.HasSuffix(name, "__") || len(name) <= len("__MSG___") {
		return name
	}
	key := strings.ToLower(name[len("__MSG_") : len(name)-2])

	candidates := []string{locale, "en", "en_US"}
	for _, loc := range candidates {
		if loc == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, "_locales", loc, "messages.json"))
		if err != nil {
			continue
		}
		var msgs map[string]struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &msgs); err != nil {
			continue
		}
		for k, v := range msgs {
			if strings.ToLower(k) == key && v.Message != "" {
				return v.Message
			}
		}
	}
	return name
}

// iconsFor maps the manifest icon set to management-API style icon URLs.
func iconsFor(id string, icons map[string]string) []Icon {
	out := make([]Icon, 0, len(icons))
	for size := range icons {
		n, err := strconv.Atoi(size)
		if err != nil {
			continue
		}
		out = append(out, Icon{
			Size: n,
			URL:  fmt.Sprintf("chrome://extension-icon/%s/%d/0", id, n),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Size < out[j].Size })
	return out
}

// latestVersionDir picks the newest "<version>_<n>" directory under dir.
func latestVersionDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	best := ""
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if best == "" || compareVersions(e.Name(), best) > 0 {
			best = e.Name()
		}
	}
	if best == "" {
		return "", nil
	}
	return filepath.Join(dir, best), nil
}

// compareVersions compares dotted numeric versions with an optional "_n"
// install suffix ("1.2.3_0"). Non-numeric parts compare as strings.
func compareVersions(a, b string) int {
	pa := strings.FieldsFunc(a, func(r rune) bool { return r == '.' || r == '_' })
	pb := strings.FieldsFunc(b, func(r rune) bool { return r == '.' || r == '_' })
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var x, y string
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		xi, xerr := strconv.Atoi(x)
		yi, yerr := strconv.Atoi(y)
		if xerr == nil && yerr == nil {
			if xi != yi {
				if xi < yi {
					return -1
				}
				return 1
			}
			continue
		}
		if x != y {
			return strings.Compare(x, y)
		}
	}
	return 0
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
