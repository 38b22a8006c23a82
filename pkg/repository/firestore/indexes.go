package firestore

import "github.com/m-mizutani/fireconf"

// Indexes returns the composite indexes required by the queries of this
// package. Index scope is the collection ID, so one definition covers the
// subcollection of every organization.
func Indexes() *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: measurementsCollection,
				Indexes: []fireconf.Index{
					// ListMeasurements: IndicatorID ASC, RecordedAt DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "IndicatorID", Order: fireconf.OrderAscending},
							{Path: "RecordedAt", Order: fireconf.OrderDescending},
						},
					},
				},
			},
			{
				Name: alertsCollection,
				Indexes: []fireconf.Index{
					// active alert lookup: IndicatorID ==, State in
					{
						Fields: []fireconf.IndexField{
							{Path: "IndicatorID", Order: fireconf.OrderAscending},
							{Path: "State", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				Name: readingsCollection,
				Indexes: []fireconf.Index{
					// ListReadings: ToleranceID ASC, RecordedAt DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "ToleranceID", Order: fireconf.OrderAscending},
							{Path: "RecordedAt", Order: fireconf.OrderDescending},
						},
					},
				},
			},
			{
				Name: breachesCollection,
				Indexes: []fireconf.Index{
					// suppressing breach lookup: ToleranceID ==, State in
					{
						Fields: []fireconf.IndexField{
							{Path: "ToleranceID", Order: fireconf.OrderAscending},
							{Path: "State", Order: fireconf.OrderAscending},
						},
					},
				},
			},
		},
	}
}
