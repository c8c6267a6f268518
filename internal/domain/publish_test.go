package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name    string
		dataset string
		rel     string
		want    string
	}{
		{"plain file", "covid-19", "covid_19_global.csv", "covid-19/dataset/covid_19_global.csv"},
		{"lowercased", "covid-19", "COVID_19_Global.csv", "covid-19/dataset/covid_19_global.csv"},
		{"spaces", "covid-19", "US States.csv", "covid-19/dataset/us_states.csv"},
		{"nested", "covid-19", "archive/./2021.csv", "covid-19/dataset/archive/2021.csv"},
		{"leading slash", "covid-19", "/covid_19_us_states.csv", "covid-19/dataset/covid_19_us_states.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectKey(tt.dataset, tt.rel))
		})
	}
}

func TestChangedAssets(t *testing.T) {
	states := Asset{Bucket: "b", Key: "covid-19/dataset/covid_19_us_states.csv"}
	global := Asset{Bucket: "b", Key: "covid-19/dataset/covid_19_global.csv"}

	t.Run("nothing changed", func(t *testing.T) {
		assets, err := ChangedAssets([]Upload{{Asset: states}, {Asset: global}})
		require.NoError(t, err)
		assert.Empty(t, assets)
	})

	t.Run("only changed files are returned", func(t *testing.T) {
		assets, err := ChangedAssets([]Upload{{Asset: states}, {Asset: global, Changed: true}})
		require.NoError(t, err)
		assert.Equal(t, []Asset{global}, assets)
	})

	t.Run("changes without assets are inconsistent", func(t *testing.T) {
		_, err := ChangedAssets([]Upload{{Changed: true}, {Asset: Asset{Bucket: "b"}, Changed: true}})
		var inconsistent *PublishInconsistencyError
		require.ErrorAs(t, err, &inconsistent)
		assert.Equal(t, 2, inconsistent.Reported)
	})
}
