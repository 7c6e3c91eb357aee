package zones

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/warfare-dev/extension/internal/model"
	"github.com/warfare-dev/extension/pkg/core"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DBProvider reads zones for one map from the zones table.
type DBProvider struct {
	DB      *gorm.DB
	MapName string
}

type definition struct {
	Center core.Position2D   `json:"center"`
	Radius float64           `json:"radius,omitempty"`
	SizeX  float64           `json:"sizeX,omitempty"`
	SizeY  float64           `json:"sizeY,omitempty"`
	Points []core.Position2D `json:"points,omitempty"`
}

// Zones loads every row for the map in id order.
func (p DBProvider) Zones(ctx context.Context) ([]Zone, error) {
	var rows []model.Zone
	err := p.DB.WithContext(ctx).
		Where("map_name = ?", p.MapName).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying zones for %s: %w", p.MapName, err)
	}

	out := make([]Zone, 0, len(rows))
	for _, row := range rows {
		z, err := fromRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, nil
}

// Save replaces the stored zones of the map with zones.
func (p DBProvider) Save(ctx context.Context, zones []Zone) error {
	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("map_name = ?", p.MapName).Delete(&model.Zone{}).Error; err != nil {
			return fmt.Errorf("clearing zones for %s: %w", p.MapName, err)
		}
		if len(zones) == 0 {
			return nil
		}
		rows := make([]model.Zone, 0, len(zones))
		for _, z := range zones {
			row, err := toRecord(p.MapName, z)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return tx.Create(&rows).Error
	})
}

func toRecord(mapName string, z Zone) (model.Zone, error) {
	def, err := json.Marshal(definition{
		Center: z.Center,
		Radius: z.Radius,
		SizeX:  z.SizeX,
		SizeY:  z.SizeY,
		Points: z.Points,
	})
	if err != nil {
		return model.Zone{}, fmt.Errorf("encoding zone %q: %w", z.Name, err)
	}
	return model.Zone{
		MapName:    mapName,
		Name:       z.Name,
		ShortName:  z.ShortName,
		Kind:       string(z.Kind),
		Team:       z.Team,
		Shape:      string(z.Shape),
		Definition: datatypes.JSON(def),
	}, nil
}

func fromRecord(row model.Zone) (Zone, error) {
	var def definition
	if len(row.Definition) > 0 {
		if err := json.Unmarshal(row.Definition, &def); err != nil {
			return Zone{}, fmt.Errorf("decoding zone %q definition: %w", row.Name, err)
		}
	}
	return Zone{
		Name:      row.Name,
		ShortName: row.ShortName,
		Kind:      Kind(row.Kind),
		Team:      row.Team,
		Shape:     Shape(row.Shape),
		Center:    def.Center,
		Radius:    def.Radius,
		SizeX:     def.SizeX,
		SizeY:     def.SizeY,
		Points:    def.Points,
	}, nil
}
