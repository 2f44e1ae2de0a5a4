package validators

import "go.mongodb.org/mongo-driver/bson"

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"shop_id",
			"services",
			"reservation_date",
			"reservation_time",
			"status",
			"version",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"shop_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"services": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"service_id", "quantity"},
					"properties": bson.M{
						"service_id": bson.M{
							"bsonType":  "string",
							"minLength": 1,
						},
						"quantity": bson.M{
							"bsonType": "int",
							"minimum":  1,
						},
					},
				},
			},

			"reservation_date": bson.M{
				"bsonType": "date",
			},

			"reservation_time": bson.M{
				"bsonType": "string",
				"pattern":  "^([01][0-9]|2[0-3]):[0-5][0-9]$",
			},

			"status": bson.M{
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

			"total_amount": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"deposit_amount": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"points_used": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"points_earned": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"reschedule_count": bson.M{
				"bsonType": "int",
				"minimum":  0,
			},

			"version": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
