package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chopralab/sciborg/pkg/httpclient"
)

const (
	pubchemBaseURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"
	pubchemFormat  = "JSON"
)

// PubChemProperties lists the compound properties the property table
// endpoint accepts.
var PubChemProperties = []string{
	"MolecularFormula", "MolecularWeight", "CanonicalSMILES", "IsomericSMILES",
	"InChI", "InChIKey", "IUPACName", "Title", "XLogP", "ExactMass",
	"MonoisotopicMass", "TPSA", "Complexity", "Charge", "HBondDonorCount",
	"HBondAcceptorCount", "RotatableBondCount", "HeavyAtomCount",
	"IsotopeAtomCount", "AtomStereoCount", "DefinedAtomStereoCount",
	"UndefinedAtomStereoCount", "BondStereoCount", "DefinedBondStereoCount",
	"UndefinedBondStereoCount", "CovalentUnitCount", "PatentCount",
	"PatentFamilyCount", "LiteratureCount", "Volume3D", "XStericQuadrupole3D",
	"YStericQuadrupole3D", "ZStericQuadrupole3D", "FeatureCount3D",
	"FeatureAcceptorCount3D", "FeatureDonorCount3D", "FeatureAnionCount3D",
	"FeatureCationCount3D", "FeatureRingCount3D", "FeatureHydrophobeCount3D",
	"ConformerModelRMSD3D", "EffectiveRotorCount3D", "ConformerCount3D",
	"Fingerprint2D",
}

// PubChem is a REST client for the PubChem PUG API. Identifier inputs
// are comma-separated lists, matching the PUG URL convention.
type PubChem struct {
	baseURL string
	client  *httpclient.Client
}

// PubChemOption customizes the client.
type PubChemOption func(*PubChem)

// WithPubChemBaseURL overrides the API base URL, for tests.
func WithPubChemBaseURL(baseURL string) PubChemOption {
	return func(p *PubChem) { p.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithPubChemHTTPClient overrides the underlying retrying client.
func WithPubChemHTTPClient(client *httpclient.Client) PubChemOption {
	return func(p *PubChem) { p.client = client }
}

func NewPubChem(opts ...PubChemOption) *PubChem {
	p := &PubChem{
		baseURL: pubchemBaseURL,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
			httpclient.WithMaxRetries(3),
		),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PubChem) get(ctx context.Context, parts ...string) (map[string]any, error) {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, p.baseURL)
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	escaped = append(escaped, pubchemFormat)
	endpoint := strings.Join(escaped, "/")

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pubchem request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result, nil
}

// SIDsFromCID returns the substance IDs for the given compound IDs.
func (p *PubChem) SIDsFromCID(ctx context.Context, cids string) (map[string]any, error) {
	return p.get(ctx, "compound", "cid", cids, "sids")
}

// CIDsFromSID returns the compound IDs for the given substance IDs.
func (p *PubChem) CIDsFromSID(ctx context.Context, sids string) (map[string]any, error) {
	return p.get(ctx, "substance", "sid", sids, "cids")
}

// Synonyms returns the synonyms of compounds or substances. inpFormat
// is one of name, sid, cid or smiles; inpType is compound or substance.
func (p *PubChem) Synonyms(ctx context.Context, inp, inpFormat, inpType string) (map[string]any, error) {
	return p.get(ctx, inpType, inpFormat, inp, "synonyms")
}

// Description returns the description of compounds or substances. For
// assay descriptions use AssayDescription instead.
func (p *PubChem) Description(ctx context.Context, inp, inpFormat, inpType string) (map[string]any, error) {
	return p.get(ctx, inpType, inpFormat, inp, "description")
}

// CompoundPropertyTable returns the requested properties for the given
// identifiers. Every property must come from PubChemProperties.
func (p *PubChem) CompoundPropertyTable(ctx context.Context, inp, inpFormat, inpType string, properties []string) (map[string]any, error) {
	if len(properties) == 0 {
		return nil, fmt.Errorf("at least one property is required")
	}
	allowed := make(map[string]bool, len(PubChemProperties))
	for _, name := range PubChemProperties {
		allowed[name] = true
	}
	for _, name := range properties {
		if !allowed[name] {
			return nil, fmt.Errorf("unknown property %q", name)
		}
	}
	return p.get(ctx, inpType, inpFormat, inp, "property", strings.Join(properties, ","))
}

// AssayDescription returns the description, protocol and score comment
// of an assay.
func (p *PubChem) AssayDescription(ctx context.Context, aid int) (map[string]any, error) {
	result, err := p.get(ctx, "assay", "aid", fmt.Sprintf("%d", aid), "description")
	if err != nil {
		return nil, err
	}

	descr, err := assayDescr(result)
	if err != nil {
		return nil, err
	}

	extracted := map[string]any{}
	for _, key := range []string{"description", "protocol", "comment"} {
		if value, ok := descr[key]; ok {
			extracted[key] = value
		}
	}
	return extracted, nil
}

// AssayIDFromSMILES returns the first assay ID that tested the compound
// with the given SMILES string.
func (p *PubChem) AssayIDFromSMILES(ctx context.Context, smiles string) (int, error) {
	result, err := p.get(ctx, "compound", "smiles", smiles, "aids")
	if err != nil {
		return 0, err
	}

	list, ok := result["InformationList"].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("unexpected response shape: missing InformationList")
	}
	info, ok := list["Information"].([]any)
	if !ok || len(info) == 0 {
		return 0, fmt.Errorf("no assays found for smiles %q", smiles)
	}
	first, ok := info[0].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("unexpected response shape: malformed Information entry")
	}
	aids, ok := first["AID"].([]any)
	if !ok || len(aids) == 0 {
		return 0, fmt.Errorf("no assays found for smiles %q", smiles)
	}
	aid, ok := aids[0].(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected response shape: non-numeric AID")
	}
	return int(aid), nil
}

// AssayNamesFromAIDs returns the name of each assay in the
// comma-separated aid list.
func (p *PubChem) AssayNamesFromAIDs(ctx context.Context, aids string) (map[string]string, error) {
	result, err := p.get(ctx, "assay", "aid", aids, "description")
	if err != nil {
		return nil, err
	}

	container, ok := result["PC_AssayContainer"].([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected response shape: missing PC_AssayContainer")
	}

	names := make(map[string]string, len(container))
	for _, entry := range container {
		descr, err := entryDescr(entry)
		if err != nil {
			return nil, err
		}
		idObj, _ := descr["aid"].(map[string]any)
		id, _ := idObj["id"].(float64)
		name, _ := descr["name"].(string)
		names[fmt.Sprintf("%d", int(id))] = name
	}
	return names, nil
}

func assayDescr(result map[string]any) (map[string]any, error) {
	container, ok := result["PC_AssayContainer"].([]any)
	if !ok || len(container) == 0 {
		return nil, fmt.Errorf("unexpected response shape: missing PC_AssayContainer")
	}
	return entryDescr(container[0])
}

func entryDescr(entry any) (map[string]any, error) {
	obj, ok := entry.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected response shape: malformed assay entry")
	}
	assay, ok := obj["assay"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected response shape: missing assay")
	}
	descr, ok := assay["descr"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected response shape: missing descr")
	}
	return descr, nil
}
