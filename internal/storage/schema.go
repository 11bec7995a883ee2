package storage

const schemaSQL = `
-- Pending URLs in insertion order; duplicates are allowed
CREATE TABLE IF NOT EXISTS urls (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL,
    added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Visit counters per location key
CREATE TABLE IF NOT EXISTS counts (
    name TEXT PRIMARY KEY NOT NULL,
    count INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0)
);

-- Extracted payloads, stored as JSON
CREATE TABLE IF NOT EXISTS gems (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL,
    payload TEXT NOT NULL,
    found_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_gems_url ON gems(url);

-- Product fields of ld+json gems (schema.org Product)
CREATE VIEW IF NOT EXISTS gem_products AS
SELECT
    id, url, found_at,
    json_extract(payload, '$.name') AS name,
    json_extract(payload, '$.brand.name') AS brand,
    json_extract(payload, '$.gtin13') AS gtin13,
    json_extract(payload, '$.offers.price') AS price,
    json_extract(payload, '$.offers.priceCurrency') AS currency,
    json_extract(payload, '$.offers.availability') AS availability
FROM gems
WHERE json_valid(payload) AND json_extract(payload, '$."@type"') = 'Product';

-- Crawl meta table stores metadata as key-value pairs
CREATE TABLE IF NOT EXISTS crawl_meta (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);
`
