package voice

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/noveltoon/backend/internal/types"
)

type Entry struct {
	ID       string         `yaml:"id" json:"id"`
	Name     string         `yaml:"name,omitempty" json:"name,omitempty"`
	Gender   types.Gender   `yaml:"gender" json:"gender"`
	AgeStage types.AgeStage `yaml:"age_stage" json:"age_stage"`
}

// DefaultCatalog is the built-in speech-provider voice table.
func DefaultCatalog() []Entry {
	return []Entry{
		{ID: "qiniu_zh_female_tmjxxy", Gender: types.GenderFemale, AgeStage: types.AgeYouth},
		{ID: "qiniu_zh_female_xyqxxj", Gender: types.GenderFemale, AgeStage: types.AgeYouth},
		{ID: "qiniu_zh_male_ljfdxz", Gender: types.GenderMale, AgeStage: types.AgeYouth},
		{ID: "qiniu_zh_female_ljfdxx", Gender: types.GenderFemale, AgeStage: types.AgeYouth},
		{ID: "qiniu_zh_female_wwxkjx", Gender: types.GenderFemale, AgeStage: types.AgeAdult},
		{ID: "qiniu_zh_male_szxyxd", Gender: types.GenderMale, AgeStage: types.AgeYouth},
		{ID: "qiniu_zh_female_glktss", Gender: types.GenderFemale, AgeStage: types.AgeAdult},
		{ID: "qiniu_zh_male_whxkxg", Gender: types.GenderMale, AgeStage: types.AgeYouth},
		{ID: "qiniu_zh_male_wncwxz", Gender: types.GenderMale, AgeStage: types.AgeYouth},
		{ID: "qiniu_zh_female_kljxdd", Gender: types.GenderFemale, AgeStage: types.AgeAdult},
		{ID: "qiniu_zh_male_ybxknjs", Gender: types.GenderMale, AgeStage: types.AgeAdult},
		{ID: "qiniu_zh_male_hlsnkk", Gender: types.GenderMale, AgeStage: types.AgeChild},
		{ID: "qiniu_zh_male_tyygjs", Gender: types.GenderMale, AgeStage: types.AgeAdult},
		{ID: "qiniu_zh_female_zxjxnjs", Gender: types.GenderFemale, AgeStage: types.AgeAdult},
		{ID: "qiniu_zh_female_cxjxgw", Gender: types.GenderFemale, AgeStage: types.AgeElder},
		{ID: "qiniu_zh_female_sqjyay", Gender: types.GenderFemale, AgeStage: types.AgeElder},
		{ID: "qiniu_zh_female_dmytwz", Gender: types.GenderFemale, AgeStage: types.AgeChild},
		{ID: "qiniu_zh_female_segsby", Gender: types.GenderFemale, AgeStage: types.AgeChild},
		{ID: "qiniu_zh_male_qslymb", Gender: types.GenderMale, AgeStage: types.AgeChild},
		{ID: "qiniu_zh_male_hllzmz", Gender: types.GenderMale, AgeStage: types.AgeChild},
		{ID: "qiniu_zh_female_wwkjby", Gender: types.GenderFemale, AgeStage: types.AgeAdult},
		{ID: "qiniu_zh_male_etgsxe", Gender: types.GenderMale, AgeStage: types.AgeChild},
		{ID: "qiniu_zh_male_gzjjxb", Gender: types.GenderMale, AgeStage: types.AgeAdult},
		{ID: "qiniu_zh_male_cxkjns", Gender: types.GenderMale, AgeStage: types.AgeAdult},
		{ID: "qiniu_zh_female_qwzscb", Gender: types.GenderFemale, AgeStage: types.AgeAdult},
		{ID: "qiniu_zh_male_mzjsxg", Gender: types.GenderMale, AgeStage: types.AgeAdult},
		{ID: "qiniu_zh_female_yyqmpq", Gender: types.GenderFemale, AgeStage: types.AgeChild},
		{ID: "qiniu_zh_male_tcsnsf", Gender: types.GenderMale, AgeStage: types.AgeChild},
	}
}

// LoadCatalogFile reads an operator-supplied catalog override from YAML.
func LoadCatalogFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read voice catalog: %w", err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse voice catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("voice catalog %s is empty", path)
	}
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("voice catalog %s: entry %d has no id", path, i)
		}
	}
	return entries, nil
}
