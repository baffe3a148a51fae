package client

// categoryListQuery fetches the full category tree in one call. The store
// exposes at most three levels below the roots, so the query nests four
// levels of uid/name/url_path.
const categoryListQuery = `
query categoryList {
    categoryList {
        id
        uid
        name
        url_path
        children {
            id
            uid
            name
            url_path
            children {
                id
                uid
                name
                url_path
                children {
                    id
                    uid
                    name
                    url_path
                }
            }
        }
    }
}
`

// productsQuery fetches one 20-item page of a leaf category's listing.
// Variables: uid (category uid), page (1-based page number).
const productsQuery = `
query getProducts($uid: String!, $page: Int!) {
    products(
        filter: { category_uid: { eq: $uid } }
        pageSize: 20
        currentPage: $page
    ) {
        total_count
        page_info {
            current_page
            total_pages
        }
        items {
            id
            uid
            sku
            name
            stock_status
            url_key
            price_range {
                maximum_price {
                    final_price {
                        value
                        currency
                    }
                    regular_price {
                        value
                        currency
                    }
                    discount {
                        amount_off
                        percent_off
                    }
                }
            }
            small_image {
                url
            }
            description {
                html
            }
        }
    }
}
`
