package validators

import "go.mongodb.org/mongo-driver/bson"

var StateChangeLogValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"reservation_id",
			"to_status",
			"actor_role",
			"actor_id",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"reservation_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"from_status": bson.M{
				"bsonType": "string",
			},

			"to_status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"requested",
					"confirmed",
					"completed",
					"cancelled_by_user",
					"cancelled_by_shop",
					"no_show",
				},
			},

			"actor_role": bson.M{
				"bsonType": "string",
				"enum":     []string{"user", "shop", "admin", "system"},
			},

			"actor_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"reason": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"metadata": bson.M{
				"bsonType": "object",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
