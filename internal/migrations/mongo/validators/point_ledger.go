package validators

import "go.mongodb.org/mongo-driver/bson"

var PointLedgerValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"event_id",
			"reservation_id",
			"user_id",
			"kind",
			"points",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"event_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"reservation_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"kind": bson.M{
				"bsonType": "string",
				"enum":     []string{"reverse_earned", "restore_used"},
			},

			"points": bson.M{
				"bsonType": "long",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
