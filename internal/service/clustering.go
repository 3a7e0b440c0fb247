package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go-news-intel/config"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/model"
	"go-news-intel/internal/textutil"
	"gorm.io/gorm"
)

// ClusterService 按标题相似度把同一事件的文章归为一个故事簇,
// 来源信任分最高的成员作为簇首
type ClusterService struct {
	db  *gorm.DB
	cfg config.ClusteringConfig
	log *logger.Logger
	now func() time.Time
	ids func() string
}

// ClusterSummary 一次聚类运行的结果
type ClusterSummary struct {
	BatchResult
	ClustersCreated int `json:"clusters_created"`
	ActiveClusters  int `json:"total_clusters"`
}

type storyCluster struct {
	id      string
	members []*model.Article
}

func NewClusterService(db *gorm.DB, cfg config.ClusteringConfig, log *logger.Logger) *ClusterService {
	return &ClusterService{db: db, cfg: cfg, log: log, now: time.Now, ids: uuid.NewString}
}

// ClusterRecent 对窗口内未聚类的文章做聚类,然后重新选举所有活跃簇的簇首
func (s *ClusterService) ClusterRecent(ctx context.Context) (*ClusterSummary, error) {
	summary := &ClusterSummary{BatchResult: newBatch("cluster", s.now())}
	cutoff := s.now().Add(-s.cfg.Window).UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var unclustered []*model.Article
		if err := tx.Where("cluster_id IS NULL AND published_at >= ?", cutoff).
			Order("published_at ASC, id ASC").
			Find(&unclustered).Error; err != nil {
			return err
		}

		var clustered []*model.Article
		if err := tx.Where("cluster_id IS NOT NULL AND published_at >= ?", cutoff).
			Order("published_at ASC, id ASC").
			Find(&clustered).Error; err != nil {
			return err
		}

		// 簇按最早成员的发布时间排序,保证匹配顺序确定
		clusters := groupClusters(clustered)

		for _, article := range unclustered {
			target := s.match(article, clusters)
			if target == nil {
				target = &storyCluster{id: s.ids()}
				clusters = append(clusters, target)
				summary.ClustersCreated++
			}

			id := target.id
			if err := tx.Model(article).Update("cluster_id", id).Error; err != nil {
				s.log.Error("assign cluster failed", "article_id", article.ID, "error", err)
				summary.Fail(article.ID, err)
				continue
			}
			article.ClusterID = &id
			target.members = append(target.members, article)
			summary.OK(article.ID, id)
		}

		ids := make([]string, 0, len(clusters))
		for _, c := range clusters {
			if len(c.members) > 0 {
				ids = append(ids, c.id)
			}
		}
		summary.ActiveClusters = len(ids)
		return s.updateLeads(tx, ids)
	})
	if err != nil {
		return nil, err
	}

	summary.finish(s.now())
	s.log.Info("clustering complete", "clusters_created", summary.ClustersCreated,
		"articles_processed", summary.Processed, "total_clusters", summary.ActiveClusters)
	return summary, nil
}

func groupClusters(articles []*model.Article) []*storyCluster {
	index := make(map[string]*storyCluster)
	var ordered []*storyCluster
	for _, a := range articles {
		c, ok := index[*a.ClusterID]
		if !ok {
			c = &storyCluster{id: *a.ClusterID}
			index[c.id] = c
			ordered = append(ordered, c)
		}
		c.members = append(c.members, a)
	}
	return ordered
}

// match 按配置策略寻找目标簇:first 取第一个命中的簇,best 取相似度最高的簇
func (s *ClusterService) match(article *model.Article, clusters []*storyCluster) *storyCluster {
	var (
		best      *storyCluster
		bestScore int
	)
	for _, c := range clusters {
		for _, member := range c.members {
			score := textutil.TokenSetRatio(article.Title, member.Title)
			if score < s.cfg.Threshold {
				continue
			}
			if s.cfg.Policy != config.ClusterPolicyBest {
				return c
			}
			if score > bestScore {
				best, bestScore = c, score
			}
		}
	}
	return best
}

// updateLeads 加载簇内全部成员(不限时间窗口)并重新选举簇首
func (s *ClusterService) updateLeads(tx *gorm.DB, clusterIDs []string) error {
	if len(clusterIDs) == 0 {
		return nil
	}

	var members []*model.Article
	if err := tx.Preload("Source").
		Where("cluster_id IN ?", clusterIDs).
		Find(&members).Error; err != nil {
		return err
	}

	byCluster := make(map[string][]*model.Article)
	for _, m := range members {
		byCluster[*m.ClusterID] = append(byCluster[*m.ClusterID], m)
	}

	for id, group := range byCluster {
		lead := ElectLead(group)
		for _, m := range group {
			isLead := m.ID == lead.ID
			if m.IsClusterLead == isLead {
				continue
			}
			if err := tx.Model(m).Update("is_cluster_lead", isLead).Error; err != nil {
				return fmt.Errorf("update lead of cluster %s: %w", id, err)
			}
		}
	}
	return nil
}

// ElectLead 信任分最高者为簇首;分数相同取发布最早的,再相同取ID最小的。
// 来源缺失时按0分处理
func ElectLead(members []*model.Article) *model.Article {
	if len(members) == 0 {
		return nil
	}
	sorted := make([]*model.Article, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := leadTrust(sorted[i]), leadTrust(sorted[j])
		if ti != tj {
			return ti > tj
		}
		if !sorted[i].PublishedAt.Equal(sorted[j].PublishedAt) {
			return sorted[i].PublishedAt.Before(sorted[j].PublishedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0]
}

func leadTrust(a *model.Article) float64 {
	if a.Source == nil {
		return 0
	}
	return a.Source.TrustScore
}

// RelatedCount 同簇的其他文章数量
func (s *ClusterService) RelatedCount(ctx context.Context, articleID uint) (int64, error) {
	article, err := findArticle(s.db.WithContext(ctx), articleID)
	if err != nil {
		return 0, err
	}
	if article.ClusterID == nil {
		return 0, nil
	}

	var count int64
	err = s.db.WithContext(ctx).Model(&model.Article{}).
		Where("cluster_id = ? AND id <> ?", *article.ClusterID, articleID).
		Count(&count).Error
	return count, err
}

// Members 返回簇内全部文章,簇首在前
func (s *ClusterService) Members(ctx context.Context, clusterID string) ([]model.Article, error) {
	var members []model.Article
	err := s.db.WithContext(ctx).Preload("Source").
		Where("cluster_id = ?", clusterID).
		Order("is_cluster_lead DESC, published_at ASC").
		Find(&members).Error
	return members, err
}
