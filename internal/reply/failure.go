package reply

import (
	"fmt"
	"strings"

	xerrors "BankAgent/internal/errors"
	"BankAgent/internal/llm"
)

// Category 是大模型调用失败的分类。
type Category string

const (
	CategoryInsufficientBalance Category = "insufficient_balance"
	CategoryUnauthorized        Category = "unauthorized"
	CategoryRateLimited         Category = "rate_limited"
	CategoryModelNotFound       Category = "model_not_found"
	CategoryGeneric             Category = "generic"
)

// Failure 是分类后的失败，Detail 保留原始错误文本。
type Failure struct {
	Category Category `json:"category"`
	Detail   string   `json:"detail"`
}

type markerRule struct {
	category Category
	markers  []string
}

// markerRules 按优先级排列，先匹配者胜出。标记均为小写。
var markerRules = []markerRule{
	{CategoryInsufficientBalance, []string{"402", "insufficient balance", "余额不足"}},
	{CategoryUnauthorized, []string{"401", "unauthorized", "invalid api key"}},
	{CategoryRateLimited, []string{"429", "rate limit", "请求频率"}},
	{CategoryModelNotFound, []string{"404", "model not found"}},
}

var codeCategories = map[xerrors.Code]Category{
	llm.CodeProviderBalance: CategoryInsufficientBalance,
	llm.CodeUnauthorized:    CategoryUnauthorized,
	llm.CodeRateLimited:     CategoryRateLimited,
	llm.CodeModelNotFound:   CategoryModelNotFound,
}

// Classify 将错误归入五个分类之一。错误链上带有服务商错误码时直接使用错误码，
// 否则按优先级扫描错误文本中的标记。
func Classify(err error) Failure {
	if err == nil {
		return Failure{Category: CategoryGeneric, Detail: "未知错误"}
	}
	detail := err.Error()
	if category, ok := codeCategories[xerrors.CodeOf(err)]; ok {
		return Failure{Category: category, Detail: detail}
	}
	return Failure{Category: classifyText(detail), Detail: detail}
}

// classifyText 按优先级扫描文本，大小写不敏感。
func classifyText(text string) Category {
	lower := strings.ToLower(text)
	for _, rule := range markerRules {
		for _, marker := range rule.markers {
			if strings.Contains(lower, marker) {
				return rule.category
			}
		}
	}
	return CategoryGeneric
}

// Message 返回面向用户的处理建议。
func (f Failure) Message() string {
	switch f.Category {
	case CategoryInsufficientBalance:
		return `**API 账户余额不足**

您的 API 账户余额不足，无法继续使用服务。

**解决方案：**
1. **DeepSeek 用户**：请访问 https://platform.deepseek.com 充值账户
2. **OpenAI 用户**：请访问 https://platform.openai.com 充值账户
3. 检查您的 API Key 是否正确
4. 确认账户是否有足够的余额

如果问题持续存在，请联系相应的 API 服务提供商。`
	case CategoryUnauthorized:
		return `**API Key 无效或未授权**

您的 API Key 可能无效或已过期。

**解决方案：**
1. 检查环境变量中的 API Key 是否正确设置
2. 确认 API Key 是否已过期
3. 在部署平台的项目设置中更新环境变量
4. 如果使用 DeepSeek，请确认 API Key 格式正确
5. 重启服务以使环境变量生效`
	case CategoryRateLimited:
		return `**请求频率过高**

您已达到 API 的请求频率限制。

**解决方案：**
1. 请稍等片刻后重试
2. 如果是免费账户，可能需要升级到付费计划
3. 检查您的 API 使用配额`
	case CategoryModelNotFound:
		return `**模型不存在**

您选择的模型可能不存在或不可用。

**解决方案：**
1. 检查模型名称是否正确
2. 确认您的 API 账户是否有权限使用该模型
3. 尝试切换到其他模型（如 deepseek-chat 或 gpt-3.5-turbo）`
	default:
		return fmt.Sprintf("**发生错误**\n\n错误信息：`%s`\n\n**可能的解决方案：**\n"+
			"1. 检查网络连接\n"+
			"2. 确认环境变量中的 API Key 和模型配置正确\n"+
			"3. 查看服务日志获取更多错误详情\n"+
			"4. 在部署平台的项目设置中检查环境变量配置", f.Detail)
	}
}
