package cli

const rootLong = `pipeq compiles URL query strings into aggregation pipelines and runs them
against SQLite, Postgres or MongoDB collections.

QUERY STRINGS
  field=value            prefix match for strings, equality otherwise
  field[op]=value        op: eq ne gt gte lt lte in regex
  search=term            case-insensitive match over the string fields
  sort=-price,name       "-" descending, "+" or nothing ascending
  fields=name,price      projection
  page=2&limit=20        pagination

CONFIGURATION
  --config FILE reads server, log, store, query and collections sections.
  PIPEQ_SECTION_KEY environment variables override it, e.g.
  PIPEQ_STORE_BACKEND=postgres PIPEQ_STORE_PG_DSN=postgres://...`
