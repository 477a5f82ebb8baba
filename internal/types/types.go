package types

// Image is a single attached image. Description is filled in by the AI
// layer (or the image-description cache) and is otherwise empty.
type Image struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Post represents one post as extracted from a mirror page. The date is kept
// as the opaque string the page served; parsing it is not this layer's job.
type Post struct {
	PostID       string   `json:"post_id,omitempty"`
	AuthorName   string   `json:"author_name"`
	AuthorHandle string   `json:"author_handle"`
	Text         string   `json:"text"`
	Date         string   `json:"date"`
	Permalink    string   `json:"permalink"`
	Images       []Image  `json:"images,omitempty"`
	Likes        int      `json:"likes"`
	Reposts      int      `json:"reposts"`
	ReplyCount   int      `json:"reply_count"`
	TopicTags    []string `json:"topic_tags,omitempty"`
}

// Key is the identity a post is deduplicated under: its id when known,
// otherwise its permalink. Empty when neither is known.
func (p *Post) Key() string {
	if p.PostID != "" {
		return p.PostID
	}
	return p.Permalink
}

// Thread is the unit of scraping and persistence: a main post plus its
// deduplicated replies. Invariant: no two replies share a non-empty Key,
// and no reply shares its Key with the main post.
type Thread struct {
	MainPost       Post   `json:"main_post"`
	Replies        []Post `json:"replies"`
	FactualContext string `json:"factual_context,omitempty"`
	Source         string `json:"source,omitempty"`
}

// CanonicalID is the identifier a thread is stored and deduplicated under:
// the main post's id, falling back to the first reply that has one.
func (t *Thread) CanonicalID() string {
	if t.MainPost.PostID != "" {
		return t.MainPost.PostID
	}
	for _, r := range t.Replies {
		if r.PostID != "" {
			return r.PostID
		}
	}
	return ""
}

// AllImages returns a pointer to every image in the thread, main post first,
// then replies in order, so the AI layer can set descriptions in place.
func (t *Thread) AllImages() []*Image {
	var imgs []*Image
	for i := range t.MainPost.Images {
		imgs = append(imgs, &t.MainPost.Images[i])
	}
	for r := range t.Replies {
		for i := range t.Replies[r].Images {
			imgs = append(imgs, &t.Replies[r].Images[i])
		}
	}
	return imgs
}
