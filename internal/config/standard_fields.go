package config

// StandardFields returns the hand-maintained table of well-known field names
// per record type, used when live sampling yields nothing. It covers only the
// common recordsets; everything else must be sampled. A fresh copy is
// returned each call so callers can layer their own entries over it.
func StandardFields() map[string][]string {
	return map[string][]string{
		"subsidiary": {
			"id", "name", "legalname", "isinactive", "currency", "country",
		},
		"customer": {
			"id", "entityid", "companyname", "email", "phone", "isinactive",
			"datecreated", "balance", "currency",
		},
		"vendor": {
			"id", "entityid", "companyname", "email", "isinactive",
			"datecreated", "balance",
		},
		"item": {
			"id", "itemid", "displayname", "itemtype", "baseprice",
			"isinactive", "lastmodifieddate",
		},
		"employee": {
			"id", "entityid", "firstname", "lastname", "email", "title",
			"isinactive", "hiredate",
		},
		"transaction": {
			"id", "tranid", "trandate", "type", "entity", "total", "status",
			"currency", "memo",
		},
	}
}
