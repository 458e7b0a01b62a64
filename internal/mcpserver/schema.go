package mcpserver

// SchemaContract describes the tables of the portal data store and how to
// query them. LLM consumers should read it before writing rows.
const SchemaContract = `# GTS Portal Data Store

Every table is a list of flat JSON rows. All rows carry:

- ` + "`id`" + ` (string, unique within the table; generated when omitted on insert)
- ` + "`created_at`" + `, ` + "`updated_at`" + ` (RFC 3339 UTC timestamps, maintained by the store)

References between tables are plain id strings and are not enforced.

## Tables

| Table | Fields |
|---|---|
| users | email, name, role (admin, crm, partner, contractor, loyalty, concierge), partner_id. Write ` + "`password`" + ` to set a login password; hashes are never returned. |
| clients | name, email, phone, status (lead, active, vip, inactive), loyalty_tier, loyalty_points, total_spent, manager_id |
| deals | client_id, title, amount, currency, stage (new, qualified, proposal, negotiation, won, lost), probability, close_date, owner_id |
| activities | client_id, deal_id, type (call, email, meeting, note), subject, due_at, done |
| bookings | client_id, fleet_id, partner_id, start_at, end_at, status (pending, confirmed, active, completed, cancelled), total, location |
| fleet | name, category, status (available, booked, maintenance), daily_rate, capacity, location, partner_id, image_url |
| partners | name, type, tier, status, commission_rate (fraction, e.g. 0.15), contact_email |
| revenue | month (YYYY-MM), partner_id, category, amount, bookings |
| weather | location, observed_at, temp_c, wind_knots, wave_height_m, conditions |

## Querying

- ` + "`where`" + ` matches rows whose fields equal ALL given values.
  An array value matches any of its elements: ` + "`{\"stage\": [\"won\", \"lost\"]}`" + `.
- ` + "`order`" + ` is a comma-separated list of fields, each optionally suffixed with
  ` + "`.asc`" + ` or ` + "`.desc`" + `. Missing values sort last.
- ` + "`limit`" + ` and ` + "`offset`" + ` paginate after filtering and sorting.

## Writing

- ` + "`update_row`" + ` merges the patch into the row; ` + "`id`" + ` and ` + "`created_at`" + ` cannot be changed.
- Pass the ` + "`checksum`" + ` from ` + "`get_row`" + ` as ` + "`if_match`" + ` to fail instead of
  overwriting a concurrent change.
- Dates are ISO 8601 strings; amounts are numbers in the row currency.
- Fleet images are uploaded with ` + "`upload_media`" + ` and referenced as ` + "`/media/<filename>`" + `.
`
