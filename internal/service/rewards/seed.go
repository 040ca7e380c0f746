package rewards

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/karmahq/karma-server/internal/models"
	"github.com/karmahq/karma-server/internal/repository"
)

// catalogFile is the on-disk shape of the predefined reward catalog.
type catalogFile struct {
	Categories []catalogCategory `yaml:"categories"`
}

type catalogCategory struct {
	Name    string          `yaml:"name"`
	Slug    string          `yaml:"slug"`
	Rewards []catalogReward `yaml:"rewards"`
}

type catalogReward struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Cost        int      `yaml:"cost"`
	Quantity    int      `yaml:"quantity"`
	Codes       []string `yaml:"codes"`
}

// SeedCatalog loads the predefined reward catalog from a YAML file and
// inserts any categories and rewards not already present. Existing rewards
// are never modified, so re-running the seed on startup is safe and cannot
// resurrect consumed stock.
func (s *Service) SeedCatalog(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	var catalog catalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}

	created := 0
	err = s.store.InTransaction(func(tx *repository.Store) error {
		for _, cat := range catalog.Categories {
			category, err := tx.Rewards.GetCategoryBySlug(cat.Slug)
			if repository.IsNotFound(err) {
				category = &models.RewardCategory{Name: cat.Name, Slug: cat.Slug}
				if err := tx.Rewards.CreateCategory(category); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}

			for _, item := range cat.Rewards {
				_, err := tx.Rewards.GetByName(item.Name)
				if err == nil {
					continue // already seeded
				}
				if !repository.IsNotFound(err) {
					return err
				}

				reward := &models.Reward{
					CategoryID:  category.ID,
					Name:        item.Name,
					Description: item.Description,
					Cost:        item.Cost,
					Quantity:    item.Quantity,
					Origin:      models.RewardOriginPredefined,
				}
				if len(item.Codes) > 0 {
					reward.Quantity = len(item.Codes)
					for _, code := range item.Codes {
						reward.Codes = append(reward.Codes, models.RewardCode{Code: code})
					}
				}
				if err := tx.Rewards.Create(reward); err != nil {
					return err
				}
				created++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed reward catalog: %w", err)
	}

	s.log.Info().
		Str("file", path).
		Int("created", created).
		Msg("Seeded reward catalog")

	return nil
}
